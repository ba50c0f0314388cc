package task

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a new, unconfigured instance of a task type.
type Factory func() Task

// TypeInfo describes a registered task type for listings and UIs.
type TypeInfo struct {
	Name   string
	Schema Schema
}

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{
	factories: make(map[string]Factory),
}

// Register makes a task type constructible by name. Registering the same
// name twice panics; task type names are global.
func Register(typeName string, factory Factory) {
	registry.Lock()
	defer registry.Unlock()

	if _, dup := registry.factories[typeName]; dup {
		panic(fmt.Sprintf("task type %q registered twice", typeName))
	}
	registry.factories[typeName] = factory
}

// New builds an empty instance of the named task type.
func New(typeName string) (Task, error) {
	registry.RLock()
	factory, ok := registry.factories[typeName]
	registry.RUnlock()

	if !ok {
		return nil, &UnknownTypeError{TypeName: typeName}
	}
	return factory(), nil
}

// Types returns the registered task types sorted by name.
func Types() []TypeInfo {
	registry.RLock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	registry.RUnlock()
	sort.Strings(names)

	infos := make([]TypeInfo, 0, len(names))
	for _, name := range names {
		t, err := New(name)
		if err != nil {
			continue
		}
		infos = append(infos, TypeInfo{Name: name, Schema: t.Schema()})
	}
	return infos
}

// SpecOptions carry workflow-level context into task construction.
type SpecOptions struct {
	// Replacements is stored on the task when the spec does not supply its
	// own mapping.
	Replacements map[string]string

	// TempDir is assigned when the spec does not set temp_dir.
	TempDir string

	// Resolve, when non-nil, is applied to every string value in the spec
	// before coercion. The parser wires the replacements resolver here.
	Resolve func(string) string
}

// FromSpec builds a task instance of typeName named name from a decoded
// configuration mapping. Keys must match declared attributes; values are
// coerced to the declared types. Nil values are dropped so declaration
// defaults apply.
func FromSpec(typeName, name string, spec map[string]any, opts *SpecOptions) (Task, error) {
	t, err := New(typeName)
	if err != nil {
		return nil, err
	}
	t.SetName(name)

	if opts == nil {
		opts = &SpecOptions{}
	}

	schema := t.Schema()
	for key, raw := range spec {
		if raw == nil {
			continue
		}

		attr, ok := schema.Find(key)
		if !ok {
			return nil, &AttributeError{
				Task:    name,
				Attr:    key,
				Message: fmt.Sprintf("task type '%s' declares no such attribute", typeName),
			}
		}

		if opts.Resolve != nil {
			raw = resolveStrings(raw, opts.Resolve)
		}

		value, err := Coerce(attr.Type, raw)
		if err != nil {
			return nil, &AttributeError{
				Task:    name,
				Attr:    key,
				Message: fmt.Sprintf("cannot coerce to %s", attr.Type),
				Cause:   err,
			}
		}
		t.Set(key, value)
	}

	if _, set := spec[AttrReplacements]; !set && len(opts.Replacements) > 0 {
		m := make(map[string]any, len(opts.Replacements))
		for k, v := range opts.Replacements {
			m[k] = v
		}
		t.Set(AttrReplacements, m)
	}
	t.SetTempDir(opts.TempDir)

	return t, nil
}

// resolveStrings applies resolve to every string in a decoded value,
// recursing through lists and mappings.
func resolveStrings(v any, resolve func(string) string) any {
	switch val := v.(type) {
	case string:
		return resolve(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = resolveStrings(e, resolve)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = resolveStrings(e, resolve)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(val))
		for k, e := range val {
			out[k] = resolveStrings(e, resolve)
		}
		return out
	}
	return v
}
