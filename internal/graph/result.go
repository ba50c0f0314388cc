package graph

import (
	"sort"
	"time"

	"renderfarm/task-engine/pkg/task"
)

// Status classifies how a task fared during graph execution.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is the per-task record of one graph execution.
type Outcome struct {
	Task   string
	Status Status

	// Result is the task's own run result. Nil for skipped tasks.
	Result *task.Result

	// Err describes the failure or the reason for skipping.
	Err error
}

// Result aggregates the outcomes of one graph execution.
type Result struct {
	Graph    string
	Outcomes map[string]*Outcome
	Duration time.Duration
}

// OK reports whether every task completed successfully.
func (r *Result) OK() bool {
	for _, out := range r.Outcomes {
		if out.Status != StatusOK {
			return false
		}
	}
	return true
}

// Failed returns the names of failed tasks, sorted.
func (r *Result) Failed() []string {
	return r.withStatus(StatusFailed)
}

// Skipped returns the names of skipped tasks, sorted.
func (r *Result) Skipped() []string {
	return r.withStatus(StatusSkipped)
}

func (r *Result) withStatus(s Status) []string {
	var names []string
	for name, out := range r.Outcomes {
		if out.Status == s {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ExitStatus maps the aggregate outcome to a process exit code.
func (r *Result) ExitStatus() int {
	if r.OK() {
		return 0
	}
	return 1
}
