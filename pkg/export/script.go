package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"renderfarm/task-engine/pkg/task"
)

// scriptArtifacts writes standalone scripts that reconstruct t (or each of
// its chunks) through the engine's run-task entry, and returns artifacts
// whose commands invoke those scripts.
func (e *Exporter) scriptArtifacts(t task.Task) ([]Artifact, error) {
	dir := t.TempDir()
	if dir == "" {
		dir = e.cfg.ScratchDir
	}
	if dir == "" {
		return nil, NewError(t.Name(), "no scratch directory configured for script export", nil)
	}

	_, isSeq := boundsOf(t)

	if e.cfg.Placeholders && isSeq {
		// One script for the whole range. The farm passes each worker's
		// assigned bounds as the script's positional parameters, so the
		// invoking command carries the two tokens last.
		body, err := e.taskCommand(t, `"$1"`, `"$2"`)
		if err != nil {
			return nil, err
		}
		path, err := e.writeScript(dir, t.Name(), body)
		if err != nil {
			return nil, NewError(t.Name(), "cannot write script", err)
		}
		command := fmt.Sprintf("%s %s %s %s", e.cfg.Shell, path, TokenStartFrame, TokenEndFrame)
		return []Artifact{newArtifact(t, KindScript, command, path)}, nil
	}

	var artifacts []Artifact
	for _, chunk := range chunksOf(t) {
		var body string
		var err error
		if isSeq {
			r, _ := boundsOf(chunk)
			body, err = e.chunkCommand(t, chunk, r)
		} else {
			body, err = e.taskCommand(chunk, "", "")
		}
		if err != nil {
			return nil, err
		}

		path, werr := e.writeScript(dir, chunk.Name(), body)
		if werr != nil {
			return nil, NewError(chunk.Name(), "cannot write script", werr)
		}
		artifacts = append(artifacts, newArtifact(chunk, KindScript, e.cfg.Shell+" "+path, path))
	}
	return artifacts, nil
}

// writeScript writes one executable script under dir and returns its path.
// The directory is created if it does not exist yet.
func (e *Exporter) writeScript(dir, taskName, command string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, e.scriptName(taskName))
	content := fmt.Sprintf("#!/usr/bin/env bash\nset -euo pipefail\n\nexec %s\n", command)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// scriptName derives the deterministic script file name from the job name
// and the (possibly chunk-suffixed) task name.
func (e *Exporter) scriptName(taskName string) string {
	return sanitizeName(e.cfg.JobName) + "_" + sanitizeName(taskName) + ".sh"
}

func sanitizeName(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}
