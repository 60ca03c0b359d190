package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	pkgexec "github.com/dshills/autoflow/pkg/execution"
	"github.com/dshills/autoflow/pkg/workflow"
)

func newRunCommand(app *App) *cobra.Command {
	var (
		watch      bool
		outputJSON bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Execute a saved workflow",
		Long: `Execute a saved workflow. Every trigger node is an entry point; a workflow
without triggers starts at its first node. The run is recorded in the
workflow's run history.

Examples:
  # Run a workflow
  autoflow run workflow-1234

  # Print node events while the run progresses
  autoflow run workflow-1234 --watch

  # Output the run record, including the execution log, as JSON
  autoflow run workflow-1234 --output-json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := app.loadStore(ctx, args[0])
			if err != nil {
				return err
			}
			engine := app.newEngine(store)

			done := make(chan struct{})
			if watch && !outputJSON {
				events := engine.Subscribe()
				go func() {
					defer close(done)
					printEvents(cmd.OutOrStdout(), store.Snapshot().Name, events)
				}()
			} else {
				close(done)
			}

			run, runErr := engine.Run(ctx)
			_ = engine.Close()
			<-done

			if run == nil {
				return runErr
			}
			if outputJSON {
				if err := writeJSON(cmd.OutOrStdout(), run); err != nil {
					return err
				}
				return runErr
			}

			printRunSummary(cmd.OutOrStdout(), run)
			if verbose {
				printLogEntries(cmd.OutOrStdout(), run.Logs)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Print node events in real time")
	cmd.Flags().BoolVar(&outputJSON, "output-json", false, "Output the run record as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the execution log after the run")
	cmd.MarkFlagsMutuallyExclusive("watch", "output-json")
	return cmd
}

// printEvents writes node events until the channel is closed.
func printEvents(w io.Writer, name string, events <-chan pkgexec.ExecutionEvent) {
	for ev := range events {
		ts := ev.Timestamp.Local().Format("15:04:05.000")
		switch ev.Type {
		case pkgexec.EventRunStarted:
			_, _ = fmt.Fprintf(w, "%s ▶ Run %s of %s started\n", ts, ev.RunID, name)
		case pkgexec.EventNodeStarted:
			_, _ = fmt.Fprintf(w, "%s %s %s\n", ts, phaseSymbol(execution.PhaseStart), ev.NodeID)
		case pkgexec.EventNodeCompleted:
			_, _ = fmt.Fprintf(w, "%s %s %s\n", ts, phaseSymbol(execution.PhaseComplete), ev.NodeID)
		case pkgexec.EventNodeFailed:
			_, _ = fmt.Fprintf(w, "%s %s %s: %v\n", ts, phaseSymbol(execution.PhaseError), ev.NodeID, ev.Error)
		case pkgexec.EventNodeSkipped:
			_, _ = fmt.Fprintf(w, "%s %s○%s %s skipped\n", ts, colorGray, colorReset, ev.NodeID)
		}
	}
}

func printRunSummary(w io.Writer, run *execution.Run) {
	symbol := colorGreen + "✓" + colorReset
	if run.Status != execution.StatusCompleted || run.Failed > 0 {
		symbol = colorRed + "✗" + colorReset
	}
	_, _ = fmt.Fprintf(w, "%s Run %s %s (%s): %d succeeded, %d failed, %d skipped\n",
		symbol, run.ID, colorizeStatus(run.Status), formatDurationValue(run.Duration()),
		run.Succeeded, run.Failed, run.Skipped)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "  %sError: %s%s\n", colorRed, run.Error, colorReset)
	}
}

// printLogEntries writes log entries as a table.
func printLogEntries(w io.Writer, entries []execution.LogEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		detail := ""
		switch e.Phase {
		case execution.PhaseComplete:
			detail = formatValue(map[string]any(e.Data))
		case execution.PhaseError:
			detail = colorRed + e.Error + colorReset
		}
		duration := ""
		if e.Phase != execution.PhaseStart {
			duration = formatDurationValue(e.Duration)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("15:04:05.000"), phaseSymbol(e.Phase), e.Phase,
			e.NodeID, duration, detail)
	}
	_ = tw.Flush()
}

func newTestNodeCommand(app *App) *cobra.Command {
	var (
		input  string
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "test-node <workflow-id> <node-id>",
		Short: "Execute one node in isolation",
		Long: `Execute one node with a JSON input without following its connections. The
result is stored as the node's test result. Malformed input is replaced by
an empty object.

Examples:
  autoflow test-node workflow-1234 node-5678
  autoflow test-node workflow-1234 node-5678 --input '{"rows": [{"amount": 12}]}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := app.loadStore(ctx, args[0])
			if err != nil {
				return err
			}
			engine := app.newEngine(store)
			defer func() { _ = engine.Close() }()

			result, testErr := engine.TestNodeJSON(ctx, types.NodeID(args[1]), input)
			if errors.Is(testErr, workflow.ErrNodeNotFound) {
				return testErr
			}
			if !noSave {
				if _, err := app.saveStore(ctx, store); err != nil {
					return err
				}
			}
			if testErr != nil {
				return fmt.Errorf("node test failed: %w", testErr)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input payload as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not store the test result")
	return cmd
}
