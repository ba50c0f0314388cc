package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"renderfarm/task-engine/internal/resolver"
	"renderfarm/task-engine/internal/summary"
	"renderfarm/task-engine/pkg/task"
)

// runTaskCmd is the run-task subcommand, the entry point exported
// artifacts invoke on render nodes.
var runTaskCmd = &cobra.Command{
	Use:   "run-task --task_name TYPE [--attribute value ...]",
	Short: "Reconstruct and run a single task from serialized attributes",
	Long: `Reconstruct one task from the attribute pairs a farm job carries and
run it on this machine. Exported command lines and scripts invoke this
command on render nodes, with frame placeholders already substituted.

Attribute values arrive the way the export serialized them: collections
as JSON, everything else as plain strings coerced by the task schema.`,
	Example: `  # Run one chunk of a render
  task-engine run-task --task_name CommandLine --name comp_1-8 \
    --script render.sh --args '["1", "8"]' --start_frame 1 --end_frame 8

  # Delete a scratch directory
  task-engine run-task --task_name FileDelete --name cleanup \
    --source /tmp/scratch --start_frame 1 --end_frame 1`,
	// Attribute names come from task schemas, so flags cannot be
	// declared up front. The command parses its own argument list.
	DisableFlagParsing: true,
	RunE:               runTask,
}

func init() {
	rootCmd.AddCommand(runTaskCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	// Flag parsing is disabled, so the global flags arrive here raw and
	// must be picked out before the attribute pairs.
	attrArgs := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--help", "-h":
			return cmd.Help()
		case "--debug":
			debug = true
		case "--quiet", "-q":
			quiet = true
		case "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("flag --config needs a value")
			}
			i++
			cfgFile = args[i]
		default:
			attrArgs = append(attrArgs, args[i])
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	typeName, spec, err := parseTaskArgs(attrArgs)
	if err != nil {
		return err
	}

	name, _ := spec[task.AttrTaskName].(string)

	// Engine replacements merge under the mapping carried on the wire, so
	// node-local configuration can add tokens without overriding the job.
	repl := make(map[string]string, len(cfg.Engine.Replacements))
	for k, v := range cfg.Engine.Replacements {
		repl[k] = v
	}
	if m, ok := spec[task.AttrReplacements].(map[string]any); ok {
		for k, v := range m {
			repl[k] = fmt.Sprintf("%v", v)
		}
	}

	res := resolver.New(resolver.Config{
		Replacements: repl,
		SearchPaths:  cfg.Engine.SearchPaths,
		Token:        cfg.Engine.ResolverToken,
	})

	t, err := task.FromSpec(typeName, name, spec, &task.SpecOptions{
		Replacements: cfg.Engine.Replacements,
		TempDir:      cfg.Engine.ScratchDir,
		Resolve:      res.Resolve,
	})
	if err != nil {
		return err
	}

	if err := t.Validate(); err != nil {
		return err
	}
	if err := t.Setup(); err != nil {
		return fmt.Errorf("task setup failed: %w", err)
	}

	// Cancelable context, released on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nAborting task...")
		cancel()
	}()

	collector := summary.NewCollector(t.Name())
	result := t.Run(ctx)
	collector.RecordResult(result)

	report := collector.Report()
	if !quiet {
		summary.NewPrinter(os.Stdout, true).Print(report)
	}

	if report.ExitStatus() != 0 {
		if result != nil && result.Err != nil {
			return result.Err
		}
		return fmt.Errorf("task '%s' failed", t.Name())
	}
	return nil
}

// parseTaskArgs splits a serialized argument list into the task type name
// and an attribute spec. Arguments are --attribute value pairs in the
// shape exported artifacts carry; --attribute=value is accepted too.
func parseTaskArgs(args []string) (string, map[string]any, error) {
	var typeName string
	spec := make(map[string]any, len(args)/2)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") || len(arg) == 2 {
			return "", nil, fmt.Errorf("unexpected argument %q, attributes are passed as --name value pairs", arg)
		}

		key := arg[2:]
		var value string
		if eq := strings.IndexByte(key, '='); eq >= 0 {
			key, value = key[:eq], key[eq+1:]
			if key == "" {
				return "", nil, fmt.Errorf("unexpected argument %q, attributes are passed as --name value pairs", arg)
			}
		} else {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("attribute '%s' has no value", key)
			}
			i++
			value = args[i]
		}

		if key == "task_name" {
			typeName = value
			continue
		}
		spec[key] = parseAttrValue(value)
	}

	if typeName == "" {
		return "", nil, fmt.Errorf("--task_name is required")
	}
	return typeName, spec, nil
}

// parseAttrValue decodes one serialized attribute value. Collections
// travel as JSON; anything that does not parse stays a raw string for
// the schema to coerce.
func parseAttrValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '[', '{', '"':
		if v, err := oj.ParseString(trimmed); err == nil {
			return v
		}
	}
	return s
}
