package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"renderfarm/task-engine/internal/graph"
	"renderfarm/task-engine/internal/parser"
)

// validate command flags.
var validateWorkflowName string

// validateCmd is the validate subcommand.
var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml ...]",
	Short: "Validate workflow documents without running them",
	Long: `Parse workflow documents, build every workflow and check it: task
attributes against their schemas, frame ranges, and the dependency
graph for unknown references and cycles. Nothing is executed.`,
	Example: `  # Validate every workflow in a file
  task-engine validate pipeline.yaml

  # Validate one workflow only
  task-engine validate pipeline.yaml --workflow comp_render`,
	Args: cobra.ArbitraryArgs,
	RunE: validateWorkflows,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateWorkflowName, "workflow", "w", "", "validate a single workflow")
}

func validateWorkflows(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := workflowFiles(cfg, args)
	if err != nil {
		return err
	}

	loader := parser.NewLoader(files, parserConfig(cfg))

	var names []string
	if validateWorkflowName != "" {
		names = []string{validateWorkflowName}
	} else {
		names, err = loader.WorkflowNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("document declares no workflows")
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range names {
		tasks, errs := validateOne(loader, name)
		if len(errs) == 0 {
			fmt.Fprintf(out, "%s: ok (%d tasks)\n", name, tasks)
			continue
		}
		failed++
		fmt.Fprintf(out, "%s: invalid\n", name)
		for _, verr := range errs {
			fmt.Fprintf(out, "  %v\n", verr)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d workflow(s) failed validation", failed, len(names))
	}
	return nil
}

// validateOne materializes one workflow and collects every problem
// instead of stopping at the first: all invalid tasks plus any
// dependency graph defect.
func validateOne(loader *parser.Loader, name string) (int, []error) {
	tasks, err := loader.Workflow(name)
	if err != nil {
		return 0, []error{err}
	}

	var errs []error
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	g := graph.New(name, graph.Config{})
	if err := g.AddAll(tasks...); err != nil {
		errs = append(errs, err)
	} else if err := g.Validate(); err != nil {
		errs = append(errs, err)
	}

	return len(tasks), errs
}
