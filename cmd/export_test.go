package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderfarm/task-engine/pkg/export"
)

const exportDoc = `
workflows:
  day:
    - comp

tasks:
  comp:
    task_type: CommandLine
    script: render.sh
    args:
      - "{start_frame}"
      - "{end_frame}"
    start_frame: 1
    end_frame: 16
    chunk_size: 8
`

func resetExportFlags() {
	exportWorkflowName = ""
	exportFormat = ""
	exportFarm = false
	exportJobName = ""
	exportJSON = false
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestExportCommand_Chunked(t *testing.T) {
	resetExportFlags()
	path := writeWorkflowFile(t, exportDoc)

	out, errOut, err := execute(t, "export", path, "--workflow", "day")
	require.NoError(t, err)

	lines := nonEmptyLines(out)
	require.Len(t, lines, 2)
	assert.Equal(t, "render.sh 1 8", lines[0])
	assert.Equal(t, "render.sh 9 16", lines[1])
	assert.Contains(t, errOut, "exported 2 artifact(s) for workflow 'day'")
}

func TestExportCommand_Farm(t *testing.T) {
	resetExportFlags()
	path := writeWorkflowFile(t, exportDoc)

	out, _, err := execute(t, "export", path, "--workflow", "day", "--farm")
	require.NoError(t, err)

	lines := nonEmptyLines(out)
	require.Len(t, lines, 1)
	assert.Equal(t, "render.sh <STARTFRAME> <ENDFRAME>", lines[0])
}

func TestExportCommand_JSON(t *testing.T) {
	resetExportFlags()
	path := writeWorkflowFile(t, exportDoc)

	out, _, err := execute(t, "export", path, "--workflow", "day", "--json")
	require.NoError(t, err)

	var artifacts []export.Artifact
	require.NoError(t, json.Unmarshal([]byte(out), &artifacts))
	require.Len(t, artifacts, 2)

	assert.Equal(t, "comp_1-8", artifacts[0].Task)
	assert.Equal(t, "CommandLine", artifacts[0].TypeName)
	assert.Equal(t, export.KindCommand, artifacts[0].Kind)
	assert.Equal(t, "1-8", artifacts[0].Frames)
	assert.Equal(t, "9-16", artifacts[1].Frames)
	assert.NotEqual(t, artifacts[0].ID, artifacts[1].ID)
}

// Task types without their own farm command export the run-task
// reconstruction instead.
func TestExportCommand_Reconstruction(t *testing.T) {
	resetExportFlags()
	path := writeWorkflowFile(t, `
workflows:
  cleanup:
    - wipe

tasks:
  wipe:
    task_type: FileDelete
    source: /tmp/farm/scratch
    start_frame: 1
    end_frame: 1
`)

	out, _, err := execute(t, "export", path, "--workflow", "cleanup")
	require.NoError(t, err)

	lines := nonEmptyLines(out)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "task-engine run-task "), lines[0])
	assert.Contains(t, lines[0], "--task_name FileDelete")
	assert.Contains(t, lines[0], "--name 'wipe_1-1'")
	assert.Contains(t, lines[0], "--source '/tmp/farm/scratch'")
}

func TestExportCommand_ScriptFormat(t *testing.T) {
	resetExportFlags()
	scratch := t.TempDir()

	path := writeWorkflowFile(t, `
workflows:
  day:
    - comp

tasks:
  comp:
    task_type: CommandLine
    temp_dir: `+scratch+`
    script: render.sh
    args:
      - "{start_frame}"
      - "{end_frame}"
    start_frame: 1
    end_frame: 8
    chunk_size: 0
`)

	out, _, err := execute(t, "export", path, "--workflow", "day", "--format", "script")
	require.NoError(t, err)

	lines := nonEmptyLines(out)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "/bin/bash "+scratch)
	assert.Contains(t, lines[0], "day_comp.sh")
}

func TestExportCommand_UnknownFormat(t *testing.T) {
	resetExportFlags()
	path := writeWorkflowFile(t, exportDoc)

	_, _, err := execute(t, "export", path, "--workflow", "day", "--format", "csv")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown export format")
}

func TestExportCommand_UnknownWorkflow(t *testing.T) {
	resetExportFlags()
	path := writeWorkflowFile(t, exportDoc)

	_, _, err := execute(t, "export", path, "--workflow", "night")
	require.Error(t, err)
	assert.ErrorContains(t, err, "workflow 'night' is not defined")
}
