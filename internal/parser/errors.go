package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports a malformed workflow file with location information.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	where := ""
	if e.File != "" {
		where = fmt.Sprintf(" in %s", e.File)
	}
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error%s at line %d, column %d: %s", where, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error%s at line %d: %s", where, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error%s: %s", where, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a ParseError.
func NewParseError(file string, line, column int, message string, cause error) *ParseError {
	return &ParseError{
		File:    file,
		Line:    line,
		Column:  column,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError reports a well-formed document that does not describe
// a usable workflow set.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// wrapYAMLError converts a yaml.v3 error into a ParseError carrying the
// source file and the first reported line.
func wrapYAMLError(file string, err error) error {
	if err == nil {
		return nil
	}

	var message string
	if te, ok := err.(*yaml.TypeError); ok {
		message = strings.Join(te.Errors, "; ")
	} else {
		message = err.Error()
	}

	line, column := extractLineColumn(message)
	return NewParseError(file, line, column, cleanYAMLErrorMessage(message), err)
}

// extractLineColumn pulls "line N" and "column N" markers out of a YAML
// error message.
func extractLineColumn(errStr string) (int, int) {
	var line, column int

	if idx := strings.Index(errStr, "line "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "line %d", &line)
	}
	if idx := strings.Index(errStr, "column "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "column %d", &column)
	}

	return line, column
}

func cleanYAMLErrorMessage(errStr string) string {
	errStr = strings.TrimPrefix(errStr, "yaml: ")
	if len(errStr) > 0 {
		errStr = strings.ToUpper(errStr[:1]) + errStr[1:]
	}
	return errStr
}
