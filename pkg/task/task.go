// Package task implements the declarative task model for the render farm
// engine. A task type declares an ordered schema of typed attributes; an
// instance stores concrete values, validates them, runs the work locally, or
// is serialized by the exporters in pkg/export into farm artifacts.
package task

import (
	"context"
	"fmt"
)

// Names of the attributes every task type declares.
const (
	AttrTaskName       = "name"
	AttrDependencies   = "dependencies"
	AttrReplacements   = "replacements"
	AttrTempDir        = "temp_dir"
	AttrExecutable     = "command_line_executable"
	AttrExecutableArgs = "command_line_executable_args"
)

// BaseSchema declares the attributes shared by every task type. Subtype
// schemas are built with BaseSchema.Extend so these stay first in
// serialization order.
var BaseSchema = Schema{
	{Name: AttrTaskName, Type: TypeString, Configurable: true, Serialize: true,
		Description: "Instance name. Unique within a workflow; chunk names derive from it."},
	{Name: AttrDependencies, Type: TypeList, Default: []any{}, Serialize: false,
		Description: "Names of tasks that must complete before this one starts."},
	{Name: AttrReplacements, Type: TypeMap, Default: map[string]any{}, Serialize: true,
		Description: "Token substitution mapping applied to string attributes."},
	{Name: AttrTempDir, Type: TypeString, Serialize: true,
		Description: "Scratch directory for generated script exports."},
	{Name: AttrExecutable, Type: TypeString, Configurable: true, Serialize: false,
		Description: "Executable used to re-invoke this task from a command line."},
	{Name: AttrExecutableArgs, Type: TypeList, Configurable: true, Serialize: false,
		Description: "Arguments passed to the executable before task arguments."},
}

// Task is one named unit of work with declared, typed attributes.
type Task interface {
	// Name returns the instance name.
	Name() string

	// SetName renames the instance.
	SetName(name string)

	// TypeName returns the registered task type name.
	TypeName() string

	// Schema returns the ordered attribute declarations for this type.
	Schema() Schema

	// Get returns the stored value for the named attribute, falling back to
	// the declaration default when no value is stored.
	Get(name string) any

	// Set stores a value for the named attribute on this instance.
	Set(name string, value any)

	// Dependencies returns the names of tasks this one depends on.
	Dependencies() []string

	// Replacements returns the token substitution mapping.
	Replacements() map[string]string

	// Executable returns the command-line executable for re-invocation.
	Executable() string

	// ExecutableArgs returns the leading arguments for the executable.
	ExecutableArgs() []string

	// TempDir returns the scratch directory for script exports.
	TempDir() string

	// SetTempDir assigns the scratch directory if none is set.
	SetTempDir(dir string)

	// Validate checks the instance against its schema and type invariants.
	Validate() error

	// Setup prepares external state before Run. Idempotent.
	Setup() error

	// Run performs the work and reports the outcome.
	Run(ctx context.Context) *Result
}

// Base carries the common task state and implements the shared lifecycle.
// Concrete task types embed *Base and provide Run.
type Base struct {
	typeName string
	schema   Schema
	values   Values
}

// NewBase creates the shared state for a task instance of the given type.
func NewBase(typeName string, schema Schema) *Base {
	return &Base{
		typeName: typeName,
		schema:   schema,
		values:   make(Values),
	}
}

// Name returns the instance name.
func (b *Base) Name() string {
	if n, ok := b.Get(AttrTaskName).(string); ok {
		return n
	}
	return ""
}

// SetName renames the instance.
func (b *Base) SetName(name string) {
	b.Set(AttrTaskName, name)
}

// TypeName returns the registered task type name.
func (b *Base) TypeName() string {
	return b.typeName
}

// Schema returns the ordered attribute declarations.
func (b *Base) Schema() Schema {
	return b.schema
}

// Get returns the stored value for name, or the declaration default when no
// value is stored. A stored nil stays nil.
func (b *Base) Get(name string) any {
	if v, ok := b.values[name]; ok {
		return v
	}
	if attr, ok := b.schema.Find(name); ok {
		return attr.Default
	}
	return nil
}

// Set stores a value for name on this instance.
func (b *Base) Set(name string, value any) {
	b.values[name] = value
}

// CloneValues returns an independent copy of the instance's value store.
func (b *Base) CloneValues() Values {
	return b.values.Clone()
}

// ReplaceValues swaps in a new value store. Used by chunk builders.
func (b *Base) ReplaceValues(v Values) {
	b.values = v
}

// Dependencies returns the names of tasks this one depends on.
func (b *Base) Dependencies() []string {
	l, ok := toAnySlice(b.Get(AttrDependencies))
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(l))
	for _, d := range l {
		deps = append(deps, fmt.Sprintf("%v", d))
	}
	return deps
}

// Replacements returns the token substitution mapping.
func (b *Base) Replacements() map[string]string {
	m, err := Coerce(TypeMap, b.Get(AttrReplacements))
	if err != nil || m == nil {
		return nil
	}
	raw := m.(map[string]any)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// Executable returns the command-line executable for re-invocation.
func (b *Base) Executable() string {
	s, _ := b.Get(AttrExecutable).(string)
	return s
}

// ExecutableArgs returns the leading arguments for the executable.
func (b *Base) ExecutableArgs() []string {
	l, ok := toAnySlice(b.Get(AttrExecutableArgs))
	if !ok {
		return nil
	}
	args := make([]string, 0, len(l))
	for _, a := range l {
		args = append(args, fmt.Sprintf("%v", a))
	}
	return args
}

// TempDir returns the scratch directory for script exports.
func (b *Base) TempDir() string {
	s, _ := b.Get(AttrTempDir).(string)
	return s
}

// SetTempDir assigns the scratch directory if none is set.
func (b *Base) SetTempDir(dir string) {
	if b.TempDir() == "" && dir != "" {
		b.Set(AttrTempDir, dir)
	}
}

// Validate checks every required attribute resolves to a non-nil value.
// Task types extend this by calling it first, then adding their own checks.
func (b *Base) Validate() error {
	for _, attr := range b.schema {
		if attr.Required && b.Get(attr.Name) == nil {
			return NewValidationError(b.Name(), attr.Name, "required attribute is not set")
		}
	}
	return nil
}

// Setup prepares external state before Run. The base implementation is a
// no-op.
func (b *Base) Setup() error {
	return nil
}

// Attr returns the value of the named attribute asserted to T.
func Attr[T any](t Task, name string) (T, bool) {
	var zero T
	v := t.Get(name)
	if v == nil {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// AttrOr returns the value of the named attribute asserted to T, or
// defaultVal when unset or of another type.
func AttrOr[T any](t Task, name string, defaultVal T) T {
	typed, ok := Attr[T](t, name)
	if !ok {
		return defaultVal
	}
	return typed
}

// IntAttr returns the named attribute as an int, converting from the
// numeric shapes YAML decoding produces.
func IntAttr(t Task, name string) (int, bool) {
	v, err := Coerce(TypeInt, t.Get(name))
	if err != nil || v == nil {
		return 0, false
	}
	return v.(int), true
}
