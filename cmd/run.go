package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"renderfarm/task-engine/internal/graph"
	"renderfarm/task-engine/internal/parser"
	"renderfarm/task-engine/internal/summary"
)

var (
	// run command flags.
	runWorkflowName string
	runParallel     int
	runJSONOutput   string
)

// runCmd is the run subcommand.
var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml ...]",
	Short: "Execute a workflow on this machine",
	Long: `Execute a workflow locally, respecting task dependencies.

Tasks are layered into stages so that every task runs after its
dependencies. Independent tasks of a stage run concurrently up to the
parallelism limit. When a task fails, everything downstream of it is
skipped and the run finishes with a non-zero exit status.`,
	Example: `  # Run the only workflow in a file
  task-engine run shot.yaml

  # Pick one workflow from a multi-workflow document
  task-engine run pipeline.yaml --workflow comp_render

  # Run a workflow discovered via the configured workflow paths
  task-engine run --workflow nightly_cleanup

  # Allow four tasks at a time
  task-engine run pipeline.yaml --workflow comp_render --parallel 4

  # Keep a machine-readable report of the run
  task-engine run shot.yaml --out-json report.json`,
	Args: cobra.ArbitraryArgs,
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// run command flags.
	runCmd.Flags().StringVarP(&runWorkflowName, "workflow", "w", "", "workflow to execute")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "max tasks running at once within a stage")
	runCmd.Flags().StringVar(&runJSONOutput, "out-json", "", "write the run report to a JSON file")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := workflowFiles(cfg, args)
	if err != nil {
		return err
	}

	loader := parser.NewLoader(files, parserConfig(cfg))
	name, err := resolveWorkflowName(loader, runWorkflowName)
	if err != nil {
		return err
	}

	tasks, err := loader.Workflow(name)
	if err != nil {
		return fmt.Errorf("loading workflow failed: %w", err)
	}

	g := graph.New(name, graph.Config{MaxParallel: runParallel})
	if err := g.AddAll(tasks...); err != nil {
		return err
	}

	// Cancelable context, released on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nAborting run...")
		cancel()
	}()

	if !quiet {
		printRunInfo(name, len(tasks))
	}

	result, err := g.Execute(ctx)
	if err != nil {
		return err
	}

	report := summary.FromResult(result)
	if !quiet {
		summary.NewPrinter(os.Stdout, true).Print(report)
	}

	if runJSONOutput != "" {
		if err := writeRunJSONOutput(runJSONOutput, report); err != nil {
			return fmt.Errorf("writing JSON report failed: %w", err)
		}
		if !quiet {
			fmt.Printf("Report written to %s\n", runJSONOutput)
		}
	}

	if !report.OK() {
		return fmt.Errorf("workflow '%s' finished with failures", name)
	}
	return nil
}

func printRunInfo(workflow string, tasks int) {
	fmt.Printf(Banner, Version)
	fmt.Println()
	fmt.Printf("  workflow: %s\n", workflow)
	fmt.Printf("  tasks:    %d\n", tasks)
	fmt.Println()
	fmt.Println("Running...")
	fmt.Println()
}

// jsonReport is the file shape written by --out-json. Durations are
// milliseconds so wrangling scripts do not have to deal with Go's
// nanosecond integers.
type jsonReport struct {
	Workflow   string      `json:"workflow"`
	Status     string      `json:"status"`
	DurationMS float64     `json:"duration_ms"`
	Tasks      []*jsonTask `json:"tasks"`
}

type jsonTask struct {
	Task         string          `json:"task"`
	Status       graph.Status    `json:"status"`
	Error        string          `json:"error,omitempty"`
	ExitCode     int             `json:"exit_code"`
	DurationMS   float64         `json:"duration_ms"`
	FrameCount   int64           `json:"frame_count"`
	FailedFrames []int           `json:"failed_frames,omitempty"`
	Frames       *jsonFrameStats `json:"frames,omitempty"`
}

type jsonFrameStats struct {
	MinMS float64 `json:"min_ms"`
	AvgMS float64 `json:"avg_ms"`
	MaxMS float64 `json:"max_ms"`
	P95MS float64 `json:"p95_ms"`
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func writeRunJSONOutput(path string, rep *summary.Report) error {
	out := &jsonReport{
		Workflow:   rep.Name,
		Status:     string(graph.StatusOK),
		DurationMS: durationMS(rep.Duration),
	}
	if !rep.OK() {
		out.Status = string(graph.StatusFailed)
	}

	for _, tr := range rep.Tasks {
		jt := &jsonTask{
			Task:         tr.Task,
			Status:       tr.Status,
			Error:        tr.Err,
			ExitCode:     tr.ExitCode,
			DurationMS:   durationMS(tr.Duration),
			FrameCount:   tr.FrameCount,
			FailedFrames: tr.FailedFrames,
		}
		if tr.Frames != nil {
			jt.Frames = &jsonFrameStats{
				MinMS: durationMS(tr.Frames.Min),
				AvgMS: durationMS(tr.Frames.Avg),
				MaxMS: durationMS(tr.Frames.Max),
				P95MS: durationMS(tr.Frames.P95),
			}
		}
		out.Tasks = append(out.Tasks, jt)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
