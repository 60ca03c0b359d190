package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
)

func newLogsCommand(app *App) *cobra.Command {
	var (
		node      string
		phase     string
		tailCount int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Display the execution log of a run",
		Long: `Display the execution log of a recorded run in append order.

Each node execution writes a start entry followed by a complete entry with
the node's output or an error entry with the failure message.

Examples:
  # View the whole log
  autoflow logs run-1234

  # Only errors
  autoflow logs run-1234 --phase error

  # One node, last 5 entries
  autoflow logs run-1234 --node node-5678 --tail 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.runHistory()
			if err != nil {
				return err
			}
			run, err := history.LoadRun(cmd.Context(), types.RunID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}

			entries := filterLogEntries(run.Logs, types.NodeID(node), execution.Phase(phase), tailCount)
			if asJSON {
				if entries == nil {
					entries = []execution.LogEntry{}
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Run: %s\n", colorCyan+string(run.ID)+colorReset)
			_, _ = fmt.Fprintf(out, "Workflow: %s\n", run.WorkflowID)
			_, _ = fmt.Fprintf(out, "Status: %s\n", colorizeStatus(run.Status))
			_, _ = fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
			if !run.CompletedAt.IsZero() {
				_, _ = fmt.Fprintf(out, "Duration: %s\n", formatDurationValue(run.Duration()))
			}
			if run.Error != "" {
				_, _ = fmt.Fprintf(out, "%sError: %s%s\n", colorRed, run.Error, colorReset)
			}
			_, _ = fmt.Fprintln(out)

			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "No log entries.")
				return nil
			}
			printLogEntries(out, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "Only show entries of one node")
	cmd.Flags().StringVar(&phase, "phase", "", "Only show one phase (start, complete, error)")
	cmd.Flags().IntVarP(&tailCount, "tail", "n", 0, "Show only the last N entries (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output entries as JSON")
	return cmd
}

// filterLogEntries applies the node, phase and tail filters in that order.
func filterLogEntries(entries []execution.LogEntry, node types.NodeID, phase execution.Phase, tail int) []execution.LogEntry {
	var out []execution.LogEntry
	for _, e := range entries {
		if node != "" && e.NodeID != node {
			continue
		}
		if phase != "" && e.Phase != phase {
			continue
		}
		out = append(out, e)
	}
	if tail > 0 && len(out) > tail {
		out = out[len(out)-tail:]
	}
	return out
}
