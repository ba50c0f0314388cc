// Package graph builds a dependency graph over tasks and executes it
// locally in topological stages. The farm path does not run through
// here: exported artifacts carry their own ordering.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"renderfarm/task-engine/pkg/logger"
	"renderfarm/task-engine/pkg/task"
)

// Config holds execution settings for a Graph.
type Config struct {
	// MaxParallel caps how many tasks of one stage run concurrently.
	// Values below 1 mean sequential execution.
	MaxParallel int
}

// Graph is a set of uniquely named tasks related by dependencies.
type Graph struct {
	name  string
	cfg   Config
	tasks map[string]task.Task
}

// New creates an empty Graph. The name is cosmetic and only appears in
// logs and reports.
func New(name string, cfg Config) *Graph {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	return &Graph{
		name:  name,
		cfg:   cfg,
		tasks: make(map[string]task.Task),
	}
}

// Name returns the graph's display name.
func (g *Graph) Name() string {
	return g.name
}

// Len returns the number of tasks added.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Add inserts a task. Task names must be unique within the graph.
func (g *Graph) Add(t task.Task) error {
	if _, exists := g.tasks[t.Name()]; exists {
		return NewDuplicateTaskError(t.Name())
	}
	g.tasks[t.Name()] = t
	return nil
}

// AddAll inserts tasks in order, stopping at the first duplicate.
func (g *Graph) AddAll(tasks ...task.Task) error {
	for _, t := range tasks {
		if err := g.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that every dependency is defined and that the graph
// is acyclic.
func (g *Graph) Validate() error {
	_, err := g.Stages()
	return err
}

// Stages returns the tasks layered topologically: every task's
// dependencies live in earlier stages. Tasks within a stage are
// independent of each other and sorted by name.
func (g *Graph) Stages() ([][]task.Task, error) {
	indegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string)

	for name, t := range g.tasks {
		deps := uniqueDeps(t)
		for _, dep := range deps {
			if _, ok := g.tasks[dep]; !ok {
				return nil, NewMissingDependencyError(name, dep)
			}
			dependents[dep] = append(dependents[dep], name)
		}
		indegree[name] = len(deps)
	}

	var current []string
	for name, deg := range indegree {
		if deg == 0 {
			current = append(current, name)
		}
	}

	var stages [][]task.Task
	placed := 0
	for len(current) > 0 {
		sort.Strings(current)

		stage := make([]task.Task, 0, len(current))
		for _, name := range current {
			stage = append(stage, g.tasks[name])
		}
		stages = append(stages, stage)
		placed += len(current)

		var next []string
		for _, name := range current {
			for _, dependent := range dependents[name] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if placed != len(g.tasks) {
		var unplaced []string
		for name, deg := range indegree {
			if deg > 0 {
				unplaced = append(unplaced, name)
			}
		}
		return nil, NewCycleError(unplaced)
	}

	return stages, nil
}

// Execute runs the graph stage by stage. Tasks whose dependencies
// failed or were skipped are skipped themselves. The returned error
// reports an invalid graph only; task failures live in the Result.
func (g *Graph) Execute(ctx context.Context) (*Result, error) {
	stages, err := g.Stages()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res := &Result{
		Graph:    g.name,
		Outcomes: make(map[string]*Outcome, len(g.tasks)),
	}

	logger.Info("executing task graph",
		zap.String("graph", g.name),
		zap.Int("tasks", len(g.tasks)),
		zap.Int("stages", len(stages)))

	for _, stage := range stages {
		runnable := make([]task.Task, 0, len(stage))
		for _, t := range stage {
			if ctx.Err() != nil {
				res.Outcomes[t.Name()] = &Outcome{Task: t.Name(), Status: StatusSkipped, Err: ctx.Err()}
				continue
			}
			if blocked, dep := g.blockedBy(t, res); blocked {
				logger.Warn("skipping task, dependency did not complete",
					zap.String("task", t.Name()),
					zap.String("dependency", dep))
				res.Outcomes[t.Name()] = &Outcome{
					Task:   t.Name(),
					Status: StatusSkipped,
					Err:    fmt.Errorf("dependency '%s' did not complete", dep),
				}
				continue
			}
			runnable = append(runnable, t)
		}

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			sem = make(chan struct{}, g.cfg.MaxParallel)
		)
		for _, t := range runnable {
			wg.Add(1)
			sem <- struct{}{}
			go func(t task.Task) {
				defer wg.Done()
				defer func() { <-sem }()

				out := runTask(ctx, t)

				mu.Lock()
				res.Outcomes[t.Name()] = out
				mu.Unlock()
			}(t)
		}
		wg.Wait()
	}

	res.Duration = time.Since(started)
	return res, nil
}

// blockedBy reports whether any dependency of t did not complete, and
// names the first one that did not.
func (g *Graph) blockedBy(t task.Task, res *Result) (bool, string) {
	for _, dep := range uniqueDeps(t) {
		out, ok := res.Outcomes[dep]
		if ok && out.Status != StatusOK {
			return true, dep
		}
	}
	return false, ""
}

// runTask drives one task through validate, setup and run. Panics are
// contained and reported as failures.
func runTask(ctx context.Context, t task.Task) (out *Outcome) {
	out = &Outcome{Task: t.Name(), Status: StatusOK}

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Err = fmt.Errorf("task '%s' panicked: %v", t.Name(), r)
			logger.Error("task panicked",
				zap.String("task", t.Name()),
				zap.Any("panic", r))
		}
	}()

	if err := t.Validate(); err != nil {
		out.Status = StatusFailed
		out.Err = err
		logger.Error("task validation failed",
			zap.String("task", t.Name()),
			zap.Error(err))
		return out
	}

	if err := t.Setup(); err != nil {
		out.Status = StatusFailed
		out.Err = err
		logger.Error("task setup failed",
			zap.String("task", t.Name()),
			zap.Error(err))
		return out
	}

	r := t.Run(ctx)
	out.Result = r
	if r != nil && (r.Status != 0 || r.Err != nil) {
		out.Status = StatusFailed
		out.Err = r.Err
		logger.Error("task failed",
			zap.String("task", t.Name()),
			zap.Int("status", r.Status))
		return out
	}

	logger.Info("task completed", zap.String("task", t.Name()))
	return out
}

func uniqueDeps(t task.Task) []string {
	deps := t.Dependencies()
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
