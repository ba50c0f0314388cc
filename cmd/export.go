package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"renderfarm/task-engine/internal/parser"
	"renderfarm/task-engine/pkg/export"
)

var (
	// export command flags.
	exportWorkflowName string
	exportFormat       string
	exportFarm         bool
	exportJobName      string
	exportJSON         bool
)

// exportCmd is the export subcommand.
var exportCmd = &cobra.Command{
	Use:   "export [workflow.yaml ...]",
	Short: "Export a workflow as farm-ready artifacts",
	Long: `Validate a workflow and turn every task into submittable artifacts,
one per frame chunk. Command-line artifacts print one command per line,
ready to hand to a farm scheduler. Script artifacts are written into
the scratch directory and the invoking commands are printed instead.

With --farm, frame sequences export a single artifact whose frame
bounds are left as <STARTFRAME> and <ENDFRAME> placeholder tokens for
the farm to substitute per worker.`,
	Example: `  # Print one command per frame chunk
  task-engine export shot.yaml --workflow comp_render

  # One artifact per task, frame bounds left to the farm
  task-engine export shot.yaml --workflow comp_render --farm

  # Write wrapper scripts instead of bare commands
  task-engine export shot.yaml --workflow comp_render --format script

  # Full artifact records for pipeline tooling
  task-engine export shot.yaml --workflow comp_render --json`,
	Args: cobra.ArbitraryArgs,
	RunE: exportWorkflow,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	// export command flags.
	exportCmd.Flags().StringVarP(&exportWorkflowName, "workflow", "w", "", "workflow to export")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "artifact format: command-line or script (overrides config)")
	exportCmd.Flags().BoolVar(&exportFarm, "farm", false, "emit frame placeholder tokens for farm-side substitution")
	exportCmd.Flags().StringVar(&exportJobName, "job-name", "", "job name used in script file names (defaults to the workflow name)")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "print full artifact records as JSON")
}

func exportWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := workflowFiles(cfg, args)
	if err != nil {
		return err
	}

	loader := parser.NewLoader(files, parserConfig(cfg))
	name, err := resolveWorkflowName(loader, exportWorkflowName)
	if err != nil {
		return err
	}

	format := exportFormat
	if format == "" {
		format = cfg.Export.Format
	}
	jobName := exportJobName
	if jobName == "" {
		jobName = name
	}

	exporter, err := export.New(export.Config{
		Format:       export.Format(format),
		Placeholders: exportFarm,
		JobName:      jobName,
		ScratchDir:   cfg.Engine.ScratchDir,
		Shell:        cfg.Export.Shell,
	})
	if err != nil {
		return err
	}

	tasks, err := loader.Workflow(name)
	if err != nil {
		return fmt.Errorf("loading workflow failed: %w", err)
	}

	var artifacts []export.Artifact
	for _, t := range tasks {
		arts, err := exporter.Export(t)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, arts...)
	}

	if exportJSON {
		data, err := json.MarshalIndent(artifacts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	// Commands go to stdout so they pipe cleanly into a submitter.
	for _, a := range artifacts {
		fmt.Fprintln(cmd.OutOrStdout(), a.Command)
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d artifact(s) for workflow '%s'\n", len(artifacts), name)
	}
	return nil
}
