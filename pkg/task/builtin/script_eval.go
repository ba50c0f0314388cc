package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"renderfarm/task-engine/pkg/logger"
	"renderfarm/task-engine/pkg/task"
)

// TypeScriptEval is the registry name of the script evaluation task type.
const TypeScriptEval = "ScriptEval"

var scriptEvalSchema = task.SequenceSchema.Extend(
	task.Attribute{Name: attrScript, Type: task.TypeString, Required: true, Configurable: true, Serialize: true,
		Description: "JavaScript source evaluated once per frame."},
)

// ScriptEval evaluates a JavaScript program once per frame. The script
// sees the current frame through the frame binding and the task's name,
// type and attribute values through the task binding. A thrown error or
// an explicit falsy result fails the frame; a script with no result value
// passes.
type ScriptEval struct {
	*task.Sequence
	vm *goja.Runtime
}

// NewScriptEval creates an unconfigured ScriptEval task.
func NewScriptEval() *ScriptEval {
	t := &ScriptEval{}
	t.Sequence = task.NewSequence(TypeScriptEval, scriptEvalSchema, t)
	return t
}

// Setup builds the JavaScript runtime and installs the console and task
// bindings. Calling it again keeps the existing runtime.
func (s *ScriptEval) Setup() error {
	if s.vm != nil {
		return nil
	}

	vm := goja.New()
	s.installConsole(vm)
	vm.Set("task", map[string]any{
		"name":  s.Name(),
		"type":  s.TypeName(),
		"attrs": s.attrValues(),
	})
	s.vm = vm
	return nil
}

// RunFrame evaluates the script for one frame. Cancelling the context
// interrupts a running script.
func (s *ScriptEval) RunFrame(ctx context.Context, frame int) (int, error) {
	if s.vm == nil {
		if err := s.Setup(); err != nil {
			return 1, err
		}
	}

	s.vm.Set("frame", frame)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.vm.Interrupt("script interrupted")
		case <-done:
		}
	}()

	val, err := s.vm.RunString(task.AttrOr(s, attrScript, ""))
	close(done)
	s.vm.ClearInterrupt()

	if err != nil {
		if ctx.Err() != nil {
			return 1, ctx.Err()
		}
		return 1, fmt.Errorf("script failed: %w", err)
	}

	if val == nil || goja.IsUndefined(val) {
		return 0, nil
	}
	if !val.ToBoolean() {
		return 1, fmt.Errorf("script returned falsy result: %v", val.Export())
	}
	return 0, nil
}

// attrValues exposes the stored attribute values to the script.
func (s *ScriptEval) attrValues() map[string]any {
	attrs := make(map[string]any)
	for _, a := range s.Schema() {
		if v := s.Get(a.Name); v != nil {
			attrs[a.Name] = v
		}
	}
	return attrs
}

// installConsole routes the script's console calls into the engine log.
func (s *ScriptEval) installConsole(vm *goja.Runtime) {
	sink := func(level func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			level(strings.Join(parts, " "), zap.String("task", s.Name()))
			return goja.Undefined()
		}
	}

	console := vm.NewObject()
	console.Set("log", sink(logger.Info))
	console.Set("info", sink(logger.Info))
	console.Set("warn", sink(logger.Warn))
	console.Set("error", sink(logger.Error))
	vm.Set("console", console)
}

func init() {
	task.Register(TypeScriptEval, func() task.Task { return NewScriptEval() })
}
