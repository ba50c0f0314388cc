package task

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// AttrType is the declared semantic type of an attribute. It drives
// construction-time coercion and export formatting; values are stored as any.
type AttrType string

const (
	TypeString AttrType = "string"
	TypeInt    AttrType = "int"
	TypeFloat  AttrType = "float"
	TypeBool   AttrType = "bool"
	TypeList   AttrType = "list"
	TypeSet    AttrType = "set"
	TypeMap    AttrType = "map"
)

// Attribute declares one named, typed task parameter. Attributes are
// declared once per task type and govern validation and serialization of
// the per-instance value stored under Name.
type Attribute struct {
	// Name identifies the attribute within its task type. Unique per schema.
	Name string

	// Type is the declared semantic type tag.
	Type AttrType

	// Default is the value resolved when the instance has no stored value.
	// A nil Default means no default.
	Default any

	// Required attributes must resolve to a non-nil value at validation time.
	Required bool

	// Configurable marks attributes that workflow configuration may supply.
	Configurable bool

	// Serialize includes the attribute in command-line and script exports.
	Serialize bool

	// Description documents the attribute for operators and UIs.
	Description string
}

// Schema is an ordered list of attribute declarations. Declaration order is
// the command-line serialization order.
type Schema []Attribute

// Find returns the declaration for name.
func (s Schema) Find(name string) (Attribute, bool) {
	for _, a := range s {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Names returns the attribute names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, a := range s {
		names[i] = a.Name
	}
	return names
}

// Extend merges extra declarations into a copy of the schema. An extra
// attribute whose name is already declared replaces the original in place,
// keeping its position; new attributes append in order.
func (s Schema) Extend(extra ...Attribute) Schema {
	merged := make(Schema, len(s), len(s)+len(extra))
	copy(merged, s)
	for _, a := range extra {
		replaced := false
		for i := range merged {
			if merged[i].Name == a.Name {
				merged[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, a)
		}
	}
	return merged
}

// Check verifies the schema is well formed.
func (s Schema) Check() error {
	seen := make(map[string]struct{}, len(s))
	for _, a := range s {
		if a.Name == "" {
			return fmt.Errorf("schema declares an attribute with an empty name")
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("schema declares attribute %q twice", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

// Values holds per-instance attribute values keyed by attribute name. A
// stored nil is distinct from an absent key: Get falls back to the
// declaration default only when the key is absent.
type Values map[string]any

// Clone returns an independent copy of the value store.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Coerce converts a loosely typed value (as produced by YAML or JSON
// decoding) to the shape declared by t. Values that cannot be represented
// are rejected.
func Coerce(t AttrType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", v), nil

	case TypeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("value %v is not an integer", n)
			}
			return int(n), nil
		case string:
			i, err := strconv.Atoi(n)
			if err != nil {
				return nil, fmt.Errorf("value %q is not an integer", n)
			}
			return i, nil
		}
		return nil, fmt.Errorf("value %v (%T) is not an integer", v, v)

	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not a number", n)
			}
			return f, nil
		}
		return nil, fmt.Errorf("value %v (%T) is not a number", v, v)

	case TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("value %q is not a boolean", b)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("value %v (%T) is not a boolean", v, v)

	case TypeList:
		if l, ok := toAnySlice(v); ok {
			return l, nil
		}
		return nil, fmt.Errorf("value %v (%T) is not a list", v, v)

	case TypeSet:
		l, ok := toAnySlice(v)
		if !ok {
			return nil, fmt.Errorf("value %v (%T) is not a set", v, v)
		}
		return dedupe(l), nil

	case TypeMap:
		switch m := v.(type) {
		case map[string]any:
			return m, nil
		case map[any]any:
			out := make(map[string]any, len(m))
			for k, val := range m {
				out[fmt.Sprintf("%v", k)] = val
			}
			return out, nil
		}
		return nil, fmt.Errorf("value %v (%T) is not a mapping", v, v)
	}

	return v, nil
}

func toAnySlice(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

// dedupe removes duplicate elements, keeping first occurrences, then sorts
// by rendered form so set values serialize deterministically.
func dedupe(l []any) []any {
	seen := make(map[string]struct{}, len(l))
	out := make([]any, 0, len(l))
	for _, e := range l {
		key := fmt.Sprintf("%v", e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprintf("%v", out[i]) < fmt.Sprintf("%v", out[j])
	})
	return out
}
