package task

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// specProbe exercises construction from decoded configuration with one
// attribute of every declared type.
type specProbe struct {
	*Base
}

var specProbeSchema = BaseSchema.Extend(
	Attribute{Name: "width", Type: TypeInt, Default: 1920, Configurable: true, Serialize: true},
	Attribute{Name: "scale", Type: TypeFloat, Configurable: true, Serialize: true},
	Attribute{Name: "draft", Type: TypeBool, Default: false, Configurable: true, Serialize: true},
	Attribute{Name: "layers", Type: TypeSet, Configurable: true, Serialize: true},
	Attribute{Name: "env", Type: TypeMap, Configurable: true, Serialize: true},
)

func (p *specProbe) Run(ctx context.Context) *Result {
	return &Result{Task: p.Name()}
}

func init() {
	Register("SpecProbe", func() Task {
		return &specProbe{Base: NewBase("SpecProbe", specProbeSchema)}
	})
}

func TestNew_RegisteredType(t *testing.T) {
	got, err := New("SpecProbe")

	require.NoError(t, err)
	assert.Equal(t, "SpecProbe", got.TypeName())
	assert.Equal(t, 1920, got.Get("width"))
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("NotATaskType")

	require.Error(t, err)
	var uerr *UnknownTypeError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "NotATaskType", uerr.TypeName)
	assert.Equal(t, "unknown task type 'NotATaskType'", err.Error())
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("SpecProbe", func() Task {
			return &specProbe{Base: NewBase("SpecProbe", specProbeSchema)}
		})
	})
}

func TestTypes_SortedWithSchemas(t *testing.T) {
	infos := Types()
	require.NotEmpty(t, infos)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
		assert.NotEmpty(t, info.Schema)
	}
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "SpecProbe")
}

func TestFromSpec_CoercesDecodedValues(t *testing.T) {
	got, err := FromSpec("SpecProbe", "probe", map[string]any{
		"width":  "2048",
		"scale":  2,
		"draft":  "true",
		"layers": []any{"beauty", "ao", "beauty"},
		"env":    map[any]any{"SHOT": "sq010_0040"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "probe", got.Name())
	assert.Equal(t, 2048, got.Get("width"))
	assert.Equal(t, 2.0, got.Get("scale"))
	assert.Equal(t, true, got.Get("draft"))
	assert.Equal(t, []any{"ao", "beauty"}, got.Get("layers"))
	assert.Equal(t, map[string]any{"SHOT": "sq010_0040"}, got.Get("env"))
}

func TestFromSpec_UnknownKeyRejected(t *testing.T) {
	_, err := FromSpec("SpecProbe", "probe", map[string]any{
		"heighth": 1080,
	}, nil)

	require.Error(t, err)
	var aerr *AttributeError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "heighth", aerr.Attr)
	assert.Contains(t, err.Error(), "no such attribute")
}

func TestFromSpec_BadValueRejected(t *testing.T) {
	_, err := FromSpec("SpecProbe", "probe", map[string]any{
		"width": "very wide",
	}, nil)

	require.Error(t, err)
	var aerr *AttributeError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "width", aerr.Attr)
	require.Error(t, aerr.Cause)
}

func TestFromSpec_NilValuesKeepDefaults(t *testing.T) {
	got, err := FromSpec("SpecProbe", "probe", map[string]any{
		"width": nil,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1920, got.Get("width"))
}

func TestFromSpec_UnknownTypePropagates(t *testing.T) {
	_, err := FromSpec("NotATaskType", "probe", nil, nil)

	var uerr *UnknownTypeError
	require.ErrorAs(t, err, &uerr)
}

func TestFromSpec_InjectsWorkflowContext(t *testing.T) {
	opts := &SpecOptions{
		Replacements: map[string]string{"shot": "sq010_0040"},
		TempDir:      "/var/tmp/job",
	}

	got, err := FromSpec("SpecProbe", "probe", map[string]any{}, opts)

	require.NoError(t, err)
	assert.Equal(t, "sq010_0040", got.Replacements()["shot"])
	assert.Equal(t, "/var/tmp/job", got.TempDir())
}

func TestFromSpec_SpecValuesWinOverInjected(t *testing.T) {
	opts := &SpecOptions{
		Replacements: map[string]string{"shot": "injected"},
		TempDir:      "/var/tmp/injected",
	}

	got, err := FromSpec("SpecProbe", "probe", map[string]any{
		AttrReplacements: map[string]any{"shot": "explicit"},
		AttrTempDir:      "/var/tmp/explicit",
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, "explicit", got.Replacements()["shot"])
	assert.Equal(t, "/var/tmp/explicit", got.TempDir())
}

func TestFromSpec_ResolveAppliesToNestedStrings(t *testing.T) {
	opts := &SpecOptions{
		Resolve: func(s string) string {
			return strings.ReplaceAll(s, "{shot}", "sq010_0040")
		},
	}

	got, err := FromSpec("SpecProbe", "render_{job}", map[string]any{
		"layers": []any{"{shot}_beauty", "{shot}_ao"},
		"env":    map[string]any{"OUTPUT": "/renders/{shot}"},
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, []any{"sq010_0040_ao", "sq010_0040_beauty"}, got.Get("layers"))
	assert.Equal(t, map[string]any{"OUTPUT": "/renders/sq010_0040"}, got.Get("env"))

	// Resolution applies to configured values, not the task name itself.
	assert.Equal(t, "render_{job}", got.Name())
}
