package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"renderfarm/task-engine/api/rest"
	"renderfarm/task-engine/pkg/logger"
)

// serve command flags.
var serveAddress string

// serveCmd is the serve subcommand.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task engine REST API",
	Long: `Start the REST API used by workflow designers and pipeline tooling:
task type discovery, workflow validation and artifact export.

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Example: `  # Serve on the configured address
  task-engine serve

  # Serve on a specific port
  task-engine serve --address :9090`,
	Args: cobra.NoArgs,
	RunE: serveAPI,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", "", "listen address (overrides config)")
}

func serveAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("address") {
		cfg.Server.Address = serveAddress
	}

	server := rest.NewServer(&rest.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		EnableCORS:   cfg.Server.EnableCORS,
		Parser:       parserConfig(cfg),
		ExportFormat: cfg.Export.Format,
		ExportShell:  cfg.Export.Shell,
		ScratchDir:   cfg.Engine.ScratchDir,
	})

	// Cancelable context, released on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if !quiet {
		fmt.Printf(Banner, Version)
		fmt.Println()
		fmt.Printf("  listening on %s\n", cfg.Server.Address)
		fmt.Println()
	}

	logger.Info("starting REST API",
		zap.String("address", cfg.Server.Address),
		zap.String("export_format", cfg.Export.Format))

	return server.StartWithContext(ctx)
}
