package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"renderfarm/task-engine/pkg/frames"
	"renderfarm/task-engine/pkg/task"
)

// commandArtifacts serializes t into command-line artifacts: one command in
// placeholder mode or for rangeless tasks, one per chunk otherwise.
func (e *Exporter) commandArtifacts(t task.Task) ([]Artifact, error) {
	_, isSeq := boundsOf(t)

	if e.cfg.Placeholders && isSeq {
		cmd, err := e.taskCommand(t, TokenStartFrame, TokenEndFrame)
		if err != nil {
			return nil, err
		}
		return []Artifact{newArtifact(t, KindCommand, cmd, "")}, nil
	}

	if !isSeq {
		cmd, err := e.taskCommand(t, "", "")
		if err != nil {
			return nil, err
		}
		return []Artifact{newArtifact(t, KindCommand, cmd, "")}, nil
	}

	var artifacts []Artifact
	for _, chunk := range chunksOf(t) {
		r, _ := boundsOf(chunk)
		cmd, err := e.chunkCommand(t, chunk, r)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, newArtifact(chunk, KindCommand, cmd, ""))
	}
	return artifacts, nil
}

// taskCommand renders the command for a whole task. startArg and endArg
// override the serialized frame bounds when non-empty.
func (e *Exporter) taskCommand(t task.Task, startArg, endArg string) (string, error) {
	if cl, ok := t.(CommandLiner); ok {
		return cl.CommandLine(startArg, endArg)
	}

	var overrides map[string]string
	if startArg != "" || endArg != "" {
		overrides = map[string]string{
			task.AttrStartFrame: startArg,
			task.AttrEndFrame:   endArg,
		}
	}
	return renderCommand(t, overrides)
}

// chunkCommand renders the command for one chunk of parent. Custom
// renderers are asked on the parent instance, because chunk clones carry
// the shared sequence state but not the concrete outer type.
func (e *Exporter) chunkCommand(parent, chunk task.Task, r frames.Range) (string, error) {
	if cl, ok := parent.(CommandLiner); ok {
		return cl.CommandLine(strconv.Itoa(r.Start), strconv.Itoa(r.End))
	}
	return renderCommand(chunk, nil)
}

// renderCommand builds the generic run-task reconstruction command:
//
//	{executable} {executableArgs} --task_name {TypeName} --{attr} {value} ...
//
// Serialize attributes render in declaration order; nil values are skipped
// so the reconstruction side applies declaration defaults. Values in
// overrides are emitted verbatim in place of the stored value.
func renderCommand(t task.Task, overrides map[string]string) (string, error) {
	exe := t.Executable()
	if exe == "" {
		return "", NewError(t.Name(), "no command line executable configured", nil)
	}

	parts := make([]string, 0, 8)
	parts = append(parts, exe)
	parts = append(parts, t.ExecutableArgs()...)
	parts = append(parts, "--task_name", t.TypeName())

	for _, attr := range t.Schema() {
		if !attr.Serialize {
			continue
		}

		if literal, ok := overrides[attr.Name]; ok {
			parts = append(parts, "--"+attr.Name, literal)
			continue
		}

		value := t.Get(attr.Name)
		if value == nil {
			continue
		}
		rendered, err := renderValue(attr.Type, value)
		if err != nil {
			return "", NewError(t.Name(), fmt.Sprintf("cannot serialize attribute '%s'", attr.Name), err)
		}
		parts = append(parts, "--"+attr.Name, rendered)
	}

	return strings.Join(parts, " "), nil
}

// renderValue formats one attribute value as a single shell argument.
// Collections render as canonical JSON (sorted keys, sets deduplicated)
// and are quoted; strings are quoted; other scalars render bare.
func renderValue(t task.AttrType, v any) (string, error) {
	switch t {
	case task.TypeList, task.TypeSet, task.TypeMap:
		normalized, err := task.Coerce(t, v)
		if err != nil {
			return "", err
		}
		return quoteShell(oj.JSON(normalized, &ojg.Options{Sort: true})), nil
	}

	if s, ok := v.(string); ok {
		return quoteShell(s), nil
	}
	return fmt.Sprintf("%v", v), nil
}

// quoteShell wraps s in single quotes, escaping embedded quotes the POSIX
// way, so the farm shell passes the value through as one argument.
func quoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
