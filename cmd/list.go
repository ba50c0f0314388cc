package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"renderfarm/task-engine/pkg/task"
)

// listCmd is the list subcommand.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered task types and their attributes",
	Long: `List every registered task type with its attribute schema, in the
order attributes serialize to the farm.

Markers: required attributes must be set in the workflow, internal
attributes cannot be set from YAML, and local attributes never travel
to the farm.`,
	Args: cobra.NoArgs,
	RunE: listTaskTypes,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listTaskTypes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	for _, info := range task.Types() {
		fmt.Fprintf(out, "%s\n", info.Name)
		for _, attr := range info.Schema {
			line := fmt.Sprintf("  %-30s %-8s %-18s %s",
				attr.Name, attr.Type, attrMarkers(attr), attr.Description)
			fmt.Fprintln(out, strings.TrimRight(line, " "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func attrMarkers(a task.Attribute) string {
	var markers []string
	if a.Required {
		markers = append(markers, "required")
	}
	if !a.Configurable {
		markers = append(markers, "internal")
	}
	if !a.Serialize {
		markers = append(markers, "local")
	}
	return strings.Join(markers, ",")
}
