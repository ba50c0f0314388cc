package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderfarm/task-engine/internal/graph"
)

func TestRunCommand_ExecutesWorkflow(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch.exr")
	cache := filepath.Join(dir, "cache.exr")
	require.NoError(t, os.WriteFile(scratch, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(cache, []byte("x"), 0o644))

	path := writeWorkflowFile(t, fmt.Sprintf(`
workflows:
  cleanup:
    - wipe_scratch
    - wipe_cache

tasks:
  wipe_scratch:
    task_type: FileDelete
    source: %s
    start_frame: 1
    end_frame: 1
  wipe_cache:
    task_type: FileDelete
    source: %s
    start_frame: 1
    end_frame: 1
    dependencies:
      - wipe_scratch
`, scratch, cache))

	_, _, err := execute(t, "run", path, "--workflow", "cleanup")
	require.NoError(t, err)

	assert.NoFileExists(t, scratch)
	assert.NoFileExists(t, cache)
}

// A failed task skips its dependents, and the command exits non-zero.
func TestRunCommand_FailureSkipsDependents(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.exr")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	path := writeWorkflowFile(t, fmt.Sprintf(`
workflows:
  publish:
    - deliver
    - wipe

tasks:
  deliver:
    task_type: FileCopy
    source: %s
    destination: %s
    start_frame: 1
    end_frame: 1
  wipe:
    task_type: FileDelete
    source: %s
    start_frame: 1
    end_frame: 1
    dependencies:
      - deliver
`, filepath.Join(dir, "never_rendered.exr"), filepath.Join(dir, "out.exr"), keep))

	_, _, err := execute(t, "run", path, "--workflow", "publish")
	require.Error(t, err)
	assert.ErrorContains(t, err, "finished with failures")

	// The dependent delete never ran.
	assert.FileExists(t, keep)
}

func TestRunCommand_JSONReport(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "old_render.exr")
	require.NoError(t, os.WriteFile(victim, []byte("x"), 0o644))

	path := writeWorkflowFile(t, fmt.Sprintf(`
workflows:
  cleanup:
    - wipe

tasks:
  wipe:
    task_type: FileDelete
    source: %s
    start_frame: 1
    end_frame: 1
`, victim))

	reportPath := filepath.Join(dir, "report.json")
	t.Cleanup(func() { runJSONOutput = "" })

	_, _, err := execute(t, "run", path, "--workflow", "cleanup", "--out-json", reportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var rep jsonReport
	require.NoError(t, json.Unmarshal(data, &rep))

	assert.Equal(t, "cleanup", rep.Workflow)
	assert.Equal(t, string(graph.StatusOK), rep.Status)
	require.Len(t, rep.Tasks, 1)
	assert.Equal(t, "wipe_1-1", rep.Tasks[0].Task)
	assert.Equal(t, graph.StatusOK, rep.Tasks[0].Status)
	assert.Equal(t, 0, rep.Tasks[0].ExitCode)
	assert.EqualValues(t, 1, rep.Tasks[0].FrameCount)
	assert.Empty(t, rep.Tasks[0].FailedFrames)
}

func TestRunCommand_UnknownWorkflow(t *testing.T) {
	path := writeWorkflowFile(t, validDoc)

	_, _, err := execute(t, "run", path, "--workflow", "nope")
	require.Error(t, err)
	assert.ErrorContains(t, err, "workflow 'nope' is not defined")
}

func TestRunCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "run", filepath.Join(t.TempDir(), "absent.yaml"), "--workflow", "x")
	require.Error(t, err)
}
