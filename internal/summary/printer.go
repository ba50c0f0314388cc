package summary

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"renderfarm/task-engine/internal/graph"
)

// ANSI color codes for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

// Printer renders a Report as human-readable text.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a printer writing to w. A nil writer defaults to
// stdout.
func NewPrinter(w io.Writer, color bool) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, color: color}
}

// Print writes the full report.
func (p *Printer) Print(rep *Report) {
	header := fmt.Sprintf("=== Run Summary: %s ===", rep.Name)
	if rep.Name == "" {
		header = "=== Run Summary ==="
	}

	p.writeLine("")
	p.writeLine(p.colorize(header, colorCyan))
	p.writeLine(fmt.Sprintf("Status: %s | Tasks: %s | Duration: %s",
		p.overallStatus(rep),
		p.taskCounts(rep),
		formatDuration(rep.Duration),
	))
	p.writeLine("")

	for _, tr := range rep.Tasks {
		p.printTask(tr)
	}

	p.writeLine(p.colorize(strings.Repeat("=", len(header)), colorCyan))
	p.writeLine("")
}

func (p *Printer) printTask(tr *TaskReport) {
	p.writeLine(fmt.Sprintf("  %s:", p.colorize(tr.Task, colorWhite)))

	statusLine := fmt.Sprintf("    Status: %s", p.colorize(string(tr.Status), p.statusColor(tr.Status)))
	if tr.Status == graph.StatusFailed && tr.ExitCode != 0 {
		statusLine += fmt.Sprintf(" (exit %d)", tr.ExitCode)
	}
	if tr.Duration > 0 {
		statusLine += fmt.Sprintf(" | Duration: %s", formatDuration(tr.Duration))
	}
	p.writeLine(statusLine)

	if tr.Err != "" {
		p.writeLine(fmt.Sprintf("    Error: %s", tr.Err))
	}

	if tr.FrameCount > 0 {
		p.writeLine(fmt.Sprintf("    Frames: %d (%d failed)", tr.FrameCount, len(tr.FailedFrames)))
	}
	if len(tr.FailedFrames) > 0 {
		p.writeLine(fmt.Sprintf("    Failed Frames: %v", tr.FailedFrames))
	}

	if s := tr.Frames; s != nil {
		p.writeLine(fmt.Sprintf("    Timing: min=%s avg=%s max=%s",
			formatDuration(s.Min),
			formatDuration(s.Avg),
			formatDuration(s.Max),
		))
		p.writeLine(fmt.Sprintf("    Percentiles: p50=%s p90=%s p95=%s p99=%s",
			formatDuration(s.P50),
			formatDuration(s.P90),
			formatDuration(s.P95),
			formatDuration(s.P99),
		))
	}
}

func (p *Printer) overallStatus(rep *Report) string {
	if rep.OK() {
		return p.colorize("OK", colorGreen)
	}
	return p.colorize("FAILED", colorRed)
}

func (p *Printer) taskCounts(rep *Report) string {
	var ok, failed, skipped int
	for _, tr := range rep.Tasks {
		switch tr.Status {
		case graph.StatusFailed:
			failed++
		case graph.StatusSkipped:
			skipped++
		default:
			ok++
		}
	}

	parts := []string{fmt.Sprintf("%d ok", ok)}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	return fmt.Sprintf("%d (%s)", len(rep.Tasks), strings.Join(parts, ", "))
}

func (p *Printer) statusColor(s graph.Status) string {
	switch s {
	case graph.StatusFailed:
		return colorRed
	case graph.StatusSkipped:
		return colorYellow
	default:
		return colorGreen
	}
}

func (p *Printer) writeLine(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *Printer) colorize(s, color string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
