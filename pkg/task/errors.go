package task

import (
	"fmt"
	"sort"
)

// ValidationError reports a task that failed validation. Attr is empty for
// task-level failures such as an invalid frame range.
type ValidationError struct {
	Task    string // Name of the failing task instance
	Attr    string // Attribute that failed, if any
	Message string // What was wrong
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("task '%s': attribute '%s': %s", e.Task, e.Attr, e.Message)
	}
	return fmt.Sprintf("task '%s': %s", e.Task, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(task, attr, message string) *ValidationError {
	return &ValidationError{
		Task:    task,
		Attr:    attr,
		Message: message,
	}
}

// ExecutionError reports the frames that failed during a sequence run.
type ExecutionError struct {
	Task         string
	FailedFrames []int
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task '%s': %d frame(s) failed: %v", e.Task, len(e.FailedFrames), e.FailedFrames)
}

// NewExecutionError creates an ExecutionError with a sorted copy of the
// failed frame set.
func NewExecutionError(task string, failedFrames []int) *ExecutionError {
	frames := make([]int, len(failedFrames))
	copy(frames, failedFrames)
	sort.Ints(frames)
	return &ExecutionError{
		Task:         task,
		FailedFrames: frames,
	}
}

// UnknownTypeError reports a task type name with no registered factory.
type UnknownTypeError struct {
	TypeName string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown task type '%s'", e.TypeName)
}

// AttributeError reports a bad attribute value supplied at construction.
type AttributeError struct {
	Task    string
	Attr    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AttributeError) Error() string {
	return fmt.Sprintf("task '%s': attribute '%s': %s", e.Task, e.Attr, e.Message)
}

// Unwrap returns the underlying error.
func (e *AttributeError) Unwrap() error {
	return e.Cause
}
