// Package cmd implements the task-engine command line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"renderfarm/task-engine/internal/config"
	"renderfarm/task-engine/internal/parser"
	"renderfarm/task-engine/pkg/logger"

	// Register the built-in task types.
	_ "renderfarm/task-engine/pkg/task/builtin"
)

const (
	// Version is the current release version.
	Version = "0.1.0"
	// Banner is the ASCII art shown on startup.
	Banner = `
 _____ _____   Task Engine %s
|_   _| ____|
  | | |  _|
  | | | |___
  |_| |_____|
`
)

var (
	// Global flags.
	cfgFile string
	debug   bool
	quiet   bool
)

// rootCmd is the root command.
var rootCmd = &cobra.Command{
	Use:   "task-engine",
	Short: "Render-farm task engine",
	Long: `task-engine builds render-farm jobs from declarative YAML workflows.
It validates task attributes, chunks frame sequences, runs workflows
locally, and exports them as farm-ready command lines or scripts.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to engine config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	// Disable the default completion command.
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Custom version template.
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd returns the root command (used by tests).
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig loads the engine configuration and initializes logging from
// it, honoring the global --debug and --quiet flags.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if debug {
		cfg.Logging.Level = "debug"
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
	logger.Init(&cfg.Logging)

	return cfg, nil
}

// parserConfig maps the engine configuration onto the workflow loader.
func parserConfig(cfg *config.Config) parser.Config {
	return parser.Config{
		Replacements:   cfg.Engine.Replacements,
		TempDir:        cfg.Engine.ScratchDir,
		Executable:     cfg.Engine.Executable,
		ExecutableArgs: cfg.Engine.ExecutableArgs,
		SearchPaths:    cfg.Engine.SearchPaths,
		ResolverToken:  cfg.Engine.ResolverToken,
	}
}

// workflowFiles settles which workflow documents a command operates on.
// Positional arguments win; otherwise the configured workflow paths are
// scanned.
func workflowFiles(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	files := parser.DiscoverFiles(cfg.Engine.WorkflowPaths)
	if len(files) == 0 {
		return nil, fmt.Errorf("no workflow files given and no workflow_paths configured")
	}
	return files, nil
}

// resolveWorkflowName picks the workflow a command operates on. An
// explicit --workflow wins; a document declaring exactly one workflow
// selects it implicitly.
func resolveWorkflowName(loader *parser.Loader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	names, err := loader.WorkflowNames()
	if err != nil {
		return "", err
	}
	switch len(names) {
	case 0:
		return "", fmt.Errorf("document declares no workflows")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("--workflow is required, document declares: %s", strings.Join(names, ", "))
	}
}
