package export

import "fmt"

// Error reports a task that could not be serialized into an artifact.
// Validation failures are not Errors; they propagate from the task itself.
type Error struct {
	Task    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("export of task '%s': %s", e.Task, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new export Error.
func NewError(taskName, message string, cause error) *Error {
	return &Error{
		Task:    taskName,
		Message: message,
		Cause:   cause,
	}
}
