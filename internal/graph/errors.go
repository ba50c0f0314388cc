package graph

import (
	"fmt"
	"sort"
)

// DuplicateTaskError reports two tasks added under the same name.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task name is not unique: '%s'", e.Name)
}

// NewDuplicateTaskError creates a DuplicateTaskError.
func NewDuplicateTaskError(name string) *DuplicateTaskError {
	return &DuplicateTaskError{Name: name}
}

// MissingDependencyError reports a dependency on a task that was never
// added to the graph.
type MissingDependencyError struct {
	Task       string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task '%s' depends on undefined task '%s'", e.Task, e.Dependency)
}

// NewMissingDependencyError creates a MissingDependencyError.
func NewMissingDependencyError(taskName, dependency string) *MissingDependencyError {
	return &MissingDependencyError{Task: taskName, Dependency: dependency}
}

// CycleError reports circular dependencies. Tasks holds every task that
// could not be placed in a stage, sorted by name.
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("task graph contains circular dependencies: %v", e.Tasks)
}

// NewCycleError creates a CycleError over the unplaced tasks.
func NewCycleError(tasks []string) *CycleError {
	sorted := append([]string(nil), tasks...)
	sort.Strings(sorted)
	return &CycleError{Tasks: sorted}
}
