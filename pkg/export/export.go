// Package export serializes validated tasks into farm-executable artifacts:
// command-line invocations or standalone scripts. Range-based tasks are
// chunked first unless farm placeholder mode is requested, in which case the
// farm scheduler performs the per-worker frame division itself.
package export

import (
	"fmt"

	"github.com/google/uuid"

	"renderfarm/task-engine/pkg/frames"
	"renderfarm/task-engine/pkg/task"
)

// Format selects the artifact shape an Exporter produces.
type Format string

const (
	FormatCommandLine Format = "command-line"
	FormatScript      Format = "script"
)

// Farm placeholder tokens. The downstream scheduler substitutes these with
// the per-worker frame bounds; this system never resolves them.
const (
	TokenStartFrame = "<STARTFRAME>"
	TokenEndFrame   = "<ENDFRAME>"
)

// Kind tags what an Artifact carries.
type Kind string

const (
	KindCommand Kind = "command"
	KindScript  Kind = "script"
)

// Artifact is one farm-executable product of an export. Artifacts are
// returned in ascending frame order for chunked exports.
type Artifact struct {
	// ID is a unique job identifier for the farm submission.
	ID string `json:"id"`

	// Task is the (possibly chunk-suffixed) task instance name.
	Task string `json:"task"`

	// TypeName is the registered task type.
	TypeName string `json:"type"`

	// Kind reports whether Command runs the task directly or a script file.
	Kind Kind `json:"kind"`

	// Command is the shell command the farm worker executes.
	Command string `json:"command"`

	// Path is the script file location. Script artifacts only.
	Path string `json:"path,omitempty"`

	// Frames is the covered frame range, e.g. "10-17". Range tasks only.
	Frames string `json:"frames,omitempty"`
}

// CommandLiner is implemented by task types that render their own farm
// command instead of the generic run-task reconstruction. startArg and
// endArg are the rendered frame bounds: concrete frame numbers, farm
// placeholder tokens, or script positional parameters. Both are empty for
// tasks without a frame range.
type CommandLiner interface {
	CommandLine(startArg, endArg string) (string, error)
}

// Config configures an Exporter.
type Config struct {
	// Format selects command-line or script artifacts.
	Format Format

	// Placeholders enables farm placeholder mode: no chunking, one
	// artifact per task carrying the literal frame tokens.
	Placeholders bool

	// JobName prefixes script file names. Defaults to "job".
	JobName string

	// ScratchDir receives script files for tasks without a TempDir.
	ScratchDir string

	// Shell is the interpreter scripts run under. Defaults to /bin/bash.
	Shell string
}

// Exporter turns validated tasks into artifacts for one configured format.
type Exporter struct {
	cfg Config
}

// New creates an Exporter. The format must be one of the declared Format
// values.
func New(cfg Config) (*Exporter, error) {
	switch cfg.Format {
	case FormatCommandLine, FormatScript:
	default:
		return nil, fmt.Errorf("unknown export format %q", cfg.Format)
	}
	if cfg.JobName == "" {
		cfg.JobName = "job"
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/bash"
	}
	return &Exporter{cfg: cfg}, nil
}

// Export validates t and serializes it into artifacts. Validation errors
// propagate unchanged; nothing is written or returned for an invalid task.
func (e *Exporter) Export(t task.Task) ([]Artifact, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	switch e.cfg.Format {
	case FormatScript:
		return e.scriptArtifacts(t)
	default:
		return e.commandArtifacts(t)
	}
}

// chunksOf returns the per-chunk instances of t in ascending frame order,
// or t itself when it has no frame range or chunking is disabled.
func chunksOf(t task.Task) []task.Task {
	if seq, ok := t.(task.Sequencer); ok {
		return seq.Chunks()
	}
	return []task.Task{t}
}

// rangeLabel renders the covered frame range of a task, empty for tasks
// without one.
func rangeLabel(t task.Task) string {
	if seq, ok := t.(task.Sequencer); ok {
		return seq.Range().String()
	}
	return ""
}

func newArtifact(t task.Task, kind Kind, command, path string) Artifact {
	return Artifact{
		ID:       uuid.New().String(),
		Task:     t.Name(),
		TypeName: t.TypeName(),
		Kind:     kind,
		Command:  command,
		Path:     path,
		Frames:   rangeLabel(t),
	}
}

// boundsOf returns the frame range of t when it has one.
func boundsOf(t task.Task) (frames.Range, bool) {
	seq, ok := t.(task.Sequencer)
	if !ok {
		return frames.Range{}, false
	}
	return seq.Range(), true
}
