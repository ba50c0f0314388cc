// Package summary aggregates task and frame results into the report
// printed after a run. Frame durations are collected into HDR
// histograms so long render sessions keep a bounded memory footprint.
package summary

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"renderfarm/task-engine/internal/graph"
	"renderfarm/task-engine/pkg/task"
)

// Histogram range: one microsecond up to a full day per frame, three
// significant digits (~20KB per task).
const (
	histMin     = int64(1)
	histMax     = int64(24 * time.Hour / time.Microsecond)
	histSigFigs = 3
)

// FrameStats holds aggregated frame timings for one task.
type FrameStats struct {
	Count int64
	Min   time.Duration
	Avg   time.Duration
	Max   time.Duration
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// TaskReport is the per-task section of a run report.
type TaskReport struct {
	Task         string
	Status       graph.Status
	Err          string
	ExitCode     int
	Duration     time.Duration
	FrameCount   int64
	FailedFrames []int

	// Frames is nil when the task reported no per-frame results.
	Frames *FrameStats
}

// Report is the aggregate outcome of a run, tasks sorted by name.
type Report struct {
	Name     string
	Duration time.Duration
	Tasks    []*TaskReport
}

// OK reports whether every task completed successfully.
func (r *Report) OK() bool {
	for _, t := range r.Tasks {
		if t.Status != graph.StatusOK {
			return false
		}
	}
	return true
}

// ExitStatus returns the process exit code for this report.
func (r *Report) ExitStatus() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Collector accumulates task results for a single run.
type Collector struct {
	name    string
	started time.Time

	mu    sync.Mutex
	tasks map[string]*taskData
}

type taskData struct {
	status       graph.Status
	err          error
	exitCode     int
	duration     time.Duration
	frameCount   int64
	failedFrames []int
	hist         *hdrhistogram.Histogram
}

// NewCollector creates an empty collector for the named run.
func NewCollector(name string) *Collector {
	return &Collector{
		name:    name,
		started: time.Now(),
		tasks:   make(map[string]*taskData),
	}
}

// RecordResult folds a completed task result into the collector. Chunks
// of the same task accumulate into one histogram.
func (c *Collector) RecordResult(r *task.Result) {
	if r == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.getOrCreate(r.Task)
	data.duration = r.Duration
	data.exitCode = r.Status
	data.err = r.Err
	if r.OK() {
		data.status = graph.StatusOK
	} else {
		data.status = graph.StatusFailed
	}

	data.frameCount += int64(len(r.Frames))
	data.failedFrames = append(data.failedFrames, r.FailedFrames()...)
	for _, f := range r.Frames {
		us := f.Duration.Microseconds()
		if us < histMin {
			us = histMin
		}
		if us > histMax {
			us = histMax
		}
		_ = data.hist.RecordValue(us)
	}
}

// RecordFailure marks a task as failed without a result, as happens
// when validation or setup rejects it.
func (c *Collector) RecordFailure(taskName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.getOrCreate(taskName)
	data.status = graph.StatusFailed
	data.err = err
}

// RecordSkipped marks a task that never ran.
func (c *Collector) RecordSkipped(taskName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.getOrCreate(taskName)
	data.status = graph.StatusSkipped
	data.err = err
}

// Report builds the final report from everything recorded so far.
func (c *Collector) Report() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.tasks))
	for name := range c.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	rep := &Report{
		Name:     c.name,
		Duration: time.Since(c.started),
		Tasks:    make([]*TaskReport, 0, len(names)),
	}
	for _, name := range names {
		data := c.tasks[name]
		tr := &TaskReport{
			Task:       name,
			Status:     data.status,
			ExitCode:   data.exitCode,
			Duration:   data.duration,
			FrameCount: data.frameCount,
			Frames:     statsFromHistogram(data.hist),
		}
		if data.err != nil {
			tr.Err = data.err.Error()
		}
		if len(data.failedFrames) > 0 {
			failed := make([]int, len(data.failedFrames))
			copy(failed, data.failedFrames)
			sort.Ints(failed)
			tr.FailedFrames = failed
		}
		rep.Tasks = append(rep.Tasks, tr)
	}
	return rep
}

func (c *Collector) getOrCreate(taskName string) *taskData {
	if data, ok := c.tasks[taskName]; ok {
		return data
	}
	data := &taskData{
		status: graph.StatusOK,
		hist:   hdrhistogram.New(histMin, histMax, histSigFigs),
	}
	c.tasks[taskName] = data
	return data
}

func statsFromHistogram(h *hdrhistogram.Histogram) *FrameStats {
	if h.TotalCount() == 0 {
		return nil
	}
	return &FrameStats{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Avg:   time.Duration(h.Mean() * float64(time.Microsecond)),
		Max:   time.Duration(h.Max()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:   time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}

// FromResult converts a graph execution result into a report. The
// graph's wall time wins over the collector's own clock.
func FromResult(res *graph.Result) *Report {
	c := NewCollector(res.Graph)
	for name, out := range res.Outcomes {
		switch {
		case out.Status == graph.StatusSkipped:
			c.RecordSkipped(name, out.Err)
		case out.Result != nil:
			c.RecordResult(out.Result)
		default:
			c.RecordFailure(name, out.Err)
		}
	}
	rep := c.Report()
	rep.Duration = res.Duration
	return rep
}
