package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"renderfarm/task-engine/pkg/export"
	"renderfarm/task-engine/pkg/logger"
	"renderfarm/task-engine/pkg/task"
)

// TypeCommandLine is the registry name of the command line task type.
const TypeCommandLine = "CommandLine"

// Attribute names declared by CommandLine.
const (
	attrScript = "script"
	attrArgs   = "args"
)

// Frame tokens recognized in the configured command. Exports substitute
// the rendered chunk bounds; a local run substitutes the current frame
// for both.
const (
	tokenStartFrame = "{start_frame}"
	tokenEndFrame   = "{end_frame}"
)

var commandLineSchema = task.SequenceSchema.Extend(
	task.Attribute{Name: attrScript, Type: task.TypeString, Required: true, Configurable: true, Serialize: true,
		Description: "Command to run."},
	task.Attribute{Name: attrArgs, Type: task.TypeList, Required: true, Configurable: true, Serialize: true,
		Description: "Arguments to the command, as a list. May carry {start_frame} and {end_frame} tokens."},
)

// CommandLine runs an arbitrary command once per frame. Commands run with
// the permissions of whoever runs the workflow. Exports bypass the
// generic run-task reconstruction and emit the configured command
// directly.
type CommandLine struct {
	*task.Sequence
}

var _ export.CommandLiner = (*CommandLine)(nil)

// NewCommandLine creates an unconfigured CommandLine task.
func NewCommandLine() *CommandLine {
	t := &CommandLine{}
	t.Sequence = task.NewSequence(TypeCommandLine, commandLineSchema, t)
	return t
}

// CommandLine renders the configured command with the frame tokens
// replaced by the rendered bounds. Empty bounds leave their token in
// place.
func (c *CommandLine) CommandLine(startArg, endArg string) (string, error) {
	cmd := task.AttrOr(c, attrScript, "")
	if args := stringList(c, attrArgs); len(args) > 0 {
		cmd += " " + strings.Join(args, " ")
	}
	return replaceFrameTokens(cmd, startArg, endArg), nil
}

// RunFrame substitutes the current frame for both tokens and executes the
// command, capturing stderr for the failure report.
func (c *CommandLine) RunFrame(ctx context.Context, frame int) (int, error) {
	n := strconv.Itoa(frame)
	args := stringList(c, attrArgs)
	for i, a := range args {
		args[i] = replaceFrameTokens(a, n, n)
	}
	script := replaceFrameTokens(task.AttrOr(c, attrScript, ""), n, n)

	cmd := exec.CommandContext(ctx, script, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 1, ctx.Err()
		}

		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// The command never started: missing executable, permissions.
			return 1, err
		}

		status := exitErr.ExitCode()
		msg := strings.TrimSpace(stderr.String())
		logger.Error("command failed",
			zap.String("task", c.Name()),
			zap.Int("frame", frame),
			zap.Int("status", status),
			zap.String("stderr", msg))

		if msg != "" {
			return status, fmt.Errorf("command exited with status %d: %s", status, msg)
		}
		return status, fmt.Errorf("command exited with status %d", status)
	}

	logger.Debug("command completed",
		zap.String("task", c.Name()),
		zap.Int("frame", frame),
		zap.String("stdout", strings.TrimSpace(stdout.String())))
	return 0, nil
}

// replaceFrameTokens substitutes the rendered bounds for the frame
// tokens. An empty bound leaves its token untouched.
func replaceFrameTokens(s, startArg, endArg string) string {
	if startArg != "" {
		s = strings.ReplaceAll(s, tokenStartFrame, startArg)
	}
	if endArg != "" {
		s = strings.ReplaceAll(s, tokenEndFrame, endArg)
	}
	return s
}

func init() {
	task.Register(TypeCommandLine, func() task.Task { return NewCommandLine() })
}
