package export

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderfarm/task-engine/pkg/task"
)

// stubRender is a minimal range-based task type for exporter tests.
type stubRender struct {
	*task.Sequence
}

var stubRenderSchema = task.SequenceSchema.Extend(
	task.Attribute{Name: "renderer", Type: task.TypeString, Default: "arnold", Configurable: true, Serialize: true},
	task.Attribute{Name: "layers", Type: task.TypeSet, Configurable: true, Serialize: true},
	task.Attribute{Name: "overrides", Type: task.TypeMap, Configurable: true, Serialize: true},
)

func newStubRender(name string, start, end, chunk int) *stubRender {
	s := &stubRender{}
	s.Sequence = task.NewSequence("StubRender", stubRenderSchema, s)
	s.SetName(name)
	s.Set(task.AttrStartFrame, start)
	s.Set(task.AttrEndFrame, end)
	s.Set(task.AttrChunkSize, chunk)
	s.Set(task.AttrExecutable, "task-engine")
	s.Set(task.AttrExecutableArgs, []any{"run-task"})
	return s
}

func (s *stubRender) RunFrame(ctx context.Context, frame int) (int, error) {
	return 0, nil
}

// plainTask is a rangeless task type for exporter tests.
type plainTask struct {
	*task.Base
}

func newPlainTask(name string) *plainTask {
	p := &plainTask{Base: task.NewBase("Plain", task.BaseSchema)}
	p.SetName(name)
	p.Set(task.AttrExecutable, "task-engine")
	p.Set(task.AttrExecutableArgs, []any{"run-task"})
	return p
}

func (p *plainTask) Run(ctx context.Context) *task.Result {
	return &task.Result{Task: p.Name()}
}

func mustExporter(t *testing.T, cfg Config) *Exporter {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "carrier-pigeon"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}

func TestExport_CommandLine_ChunksRange(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	s := newStubRender("render", 10, 25, 8)

	artifacts, err := e.Export(s)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, "render_10-17", artifacts[0].Task)
	assert.Equal(t, "10-17", artifacts[0].Frames)
	assert.Equal(t,
		"task-engine run-task --task_name StubRender --name 'render_10-17' --replacements '{}' "+
			"--start_frame 10 --end_frame 17 --chunk_size 8 --renderer 'arnold'",
		artifacts[0].Command)

	assert.Equal(t, "render_18-25", artifacts[1].Task)
	assert.Equal(t, "18-25", artifacts[1].Frames)
	assert.Equal(t,
		"task-engine run-task --task_name StubRender --name 'render_18-25' --replacements '{}' "+
			"--start_frame 18 --end_frame 25 --chunk_size 8 --renderer 'arnold'",
		artifacts[1].Command)

	for _, a := range artifacts {
		assert.Equal(t, KindCommand, a.Kind)
		assert.Equal(t, "StubRender", a.TypeName)
		assert.NotEmpty(t, a.ID)
		assert.Empty(t, a.Path)
	}
	assert.NotEqual(t, artifacts[0].ID, artifacts[1].ID)
}

func TestExport_CommandLine_PlaceholdersSkipChunking(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine, Placeholders: true})
	s := newStubRender("render", 10, 25, 8)

	artifacts, err := e.Export(s)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	// One command for the whole range; the farm substitutes the tokens.
	assert.Equal(t, "render", artifacts[0].Task)
	assert.Equal(t, "10-25", artifacts[0].Frames)
	assert.Contains(t, artifacts[0].Command, "--start_frame <STARTFRAME> --end_frame <ENDFRAME>")
	assert.NotContains(t, artifacts[0].Command, "'<STARTFRAME>'")
}

func TestExport_CommandLine_ChunkSizeZero(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	s := newStubRender("render", 10, 25, 0)

	artifacts, err := e.Export(s)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	assert.Equal(t, "render", artifacts[0].Task)
	assert.Contains(t, artifacts[0].Command, "--start_frame 10 --end_frame 25")
}

func TestExport_DoesNotMutateParent(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	s := newStubRender("render", 10, 25, 8)

	_, err := e.Export(s)
	require.NoError(t, err)

	assert.Equal(t, "render", s.Name())
	assert.Equal(t, 10, s.StartFrame())
	assert.Equal(t, 25, s.EndFrame())
}

func TestExport_ValidationErrorPropagates(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	s := newStubRender("render", 25, 10, 8)

	_, err := e.Export(s)

	var verr *task.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestExport_MissingExecutable(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	s := newStubRender("render", 10, 25, 8)
	s.Set(task.AttrExecutable, nil)

	_, err := e.Export(s)

	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, err.Error(), "no command line executable")
}

func TestExport_CommandLine_PlainTask(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	p := newPlainTask("cleanup")

	artifacts, err := e.Export(p)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	assert.Equal(t, "cleanup", artifacts[0].Task)
	assert.Empty(t, artifacts[0].Frames)
	assert.Equal(t,
		"task-engine run-task --task_name Plain --name 'cleanup' --replacements '{}'",
		artifacts[0].Command)
}

func TestRenderCommand_CollectionAndQuoting(t *testing.T) {
	s := newStubRender("render", 1, 2, 0)
	s.Set("renderer", "jim's renderer")
	s.Set("layers", []any{"beauty", "ao", "beauty"})
	s.Set("overrides", map[string]any{"motion_blur": true, "aa": 4})

	cmd, err := renderCommand(s, nil)
	require.NoError(t, err)

	// Sets deduplicate and sort, maps sort keys, strings escape quotes.
	assert.Contains(t, cmd, `--layers '["ao","beauty"]'`)
	assert.Contains(t, cmd, `--overrides '{"aa":4,"motion_blur":true}'`)
	assert.Contains(t, cmd, `--renderer 'jim'\''s renderer'`)
}

func TestRenderCommand_DeclarationOrder(t *testing.T) {
	s := newStubRender("render", 1, 8, 4)

	cmd, err := renderCommand(s, nil)
	require.NoError(t, err)

	var last int
	for _, flag := range []string{"--name", "--replacements", "--start_frame", "--end_frame", "--chunk_size", "--renderer"} {
		idx := strings.Index(cmd, flag)
		require.GreaterOrEqual(t, idx, 0, "missing %s", flag)
		assert.Greater(t, idx, last, "%s out of declaration order", flag)
		last = idx
	}

	// Non-serialized attributes never appear.
	assert.NotContains(t, cmd, "--dependencies")
	assert.NotContains(t, cmd, "--command_line_executable")
}

// directRunner overrides command rendering the way the CommandLine builtin
// does: the artifact runs the configured script, not the engine.
type directRunner struct {
	*task.Sequence
}

func newDirectRunner(name string, start, end, chunk int) *directRunner {
	d := &directRunner{}
	d.Sequence = task.NewSequence("DirectRunner", task.SequenceSchema, d)
	d.SetName(name)
	d.Set(task.AttrStartFrame, start)
	d.Set(task.AttrEndFrame, end)
	d.Set(task.AttrChunkSize, chunk)
	return d
}

func (d *directRunner) RunFrame(ctx context.Context, frame int) (int, error) {
	return 0, nil
}

func (d *directRunner) CommandLine(startArg, endArg string) (string, error) {
	return fmt.Sprintf("render.sh -s %s -e %s", startArg, endArg), nil
}

func TestExport_CommandLinerOverride(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine})
	d := newDirectRunner("comp", 10, 25, 8)

	artifacts, err := e.Export(d)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	// Chunk bounds reach the parent's renderer; no executable required.
	assert.Equal(t, "render.sh -s 10 -e 17", artifacts[0].Command)
	assert.Equal(t, "render.sh -s 18 -e 25", artifacts[1].Command)
	assert.Equal(t, "comp_10-17", artifacts[0].Task)
}

func TestExport_CommandLinerOverride_Placeholders(t *testing.T) {
	e := mustExporter(t, Config{Format: FormatCommandLine, Placeholders: true})
	d := newDirectRunner("comp", 10, 25, 8)

	artifacts, err := e.Export(d)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	assert.Equal(t, "render.sh -s <STARTFRAME> -e <ENDFRAME>", artifacts[0].Command)
}
