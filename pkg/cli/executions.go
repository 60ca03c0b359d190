package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
)

// RunsListFlags holds the flags for the runs command
type RunsListFlags struct {
	Limit  int
	Status string
	Since  string
	JSON   bool
}

func newRunsCommand(app *App) *cobra.Command {
	flags := &RunsListFlags{}

	cmd := &cobra.Command{
		Use:   "runs <workflow-id>",
		Short: "List the run history of a workflow",
		Long: `List past runs of a workflow, most recent first.

Examples:
  autoflow runs workflow-1234
  autoflow runs workflow-1234 --status cancelled --since 7d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.runHistory()
			if err != nil {
				return err
			}

			var status execution.Status
			if flags.Status != "" {
				status = execution.Status(flags.Status)
				if !validRunStatus(status) {
					return fmt.Errorf("invalid status: %s (valid: completed, failed, cancelled)", flags.Status)
				}
			}

			filtered := flags.Status != "" || flags.Since != ""
			limit := flags.Limit
			if filtered {
				limit = 0
			}
			runs, err := history.ListRuns(cmd.Context(), types.WorkflowID(args[0]), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if flags.Since != "" {
				since, err := parseSinceFlag(flags.Since)
				if err != nil {
					return fmt.Errorf("invalid --since value: %w", err)
				}
				kept := runs[:0]
				for _, r := range runs {
					if !r.StartedAt.Before(since) {
						kept = append(kept, r)
					}
				}
				runs = kept
			}
			if status != "" {
				kept := runs[:0]
				for _, r := range runs {
					if r.Status == status {
						kept = append(kept, r)
					}
				}
				runs = kept
			}
			if filtered && flags.Limit > 0 && len(runs) > flags.Limit {
				runs = runs[:flags.Limit]
			}

			if flags.JSON {
				summaries := make([]map[string]any, len(runs))
				for i, r := range runs {
					summaries[i] = map[string]any{
						"id":          r.ID,
						"workflowId":  r.WorkflowID,
						"status":      r.Status,
						"startedAt":   r.StartedAt,
						"completedAt": r.CompletedAt,
						"durationMs":  r.Duration().Milliseconds(),
						"succeeded":   r.Succeeded,
						"failed":      r.Failed,
						"skipped":     r.Skipped,
						"error":       r.Error,
					}
				}
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}
			printRunsTable(cmd, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "Maximum number of runs to display (0 for all)")
	cmd.Flags().StringVar(&flags.Status, "status", "", "Filter by status (completed, failed, cancelled)")
	cmd.Flags().StringVar(&flags.Since, "since", "", "Filter by start date (e.g., 7d, 24h, 2025-01-05)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output as JSON")
	return cmd
}

func validRunStatus(s execution.Status) bool {
	switch s {
	case execution.StatusCompleted, execution.StatusFailed, execution.StatusCancelled:
		return true
	}
	return false
}

// printRunsTable displays runs in a formatted table
func printRunsTable(cmd *cobra.Command, runs []*execution.Run) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tDURATION\tNODES (ok/failed/skipped)\tSTARTED")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 10)+"\t"+strings.Repeat("-", 6)+"\t"+strings.Repeat("-", 8)+"\t"+strings.Repeat("-", 25)+"\t"+strings.Repeat("-", 7))
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d/%d\t%s\n",
			r.ID, colorizeStatus(r.Status), formatDurationValue(r.Duration()),
			r.Succeeded, r.Failed, r.Skipped, r.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
