package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

func newWorkflowExportCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <workflow-id>",
		Short: "Export a workflow as a shareable YAML document",
		Long: `Export a workflow as YAML. Run state is dropped and configuration values
that look like credentials are replaced with a placeholder; store them in
the keyring and reference them as secret://<name> instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.Repo.LoadFull(cmd.Context(), types.WorkflowID(args[0]))
			if err != nil {
				return err
			}
			data, warnings, err := workflow.ExportWithWarnings(wf)
			if err != nil {
				return fmt.Errorf("failed to export workflow: %w", err)
			}
			for _, w := range warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: redacted %s\n", w)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %s to %s\n", wf.Name, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newWorkflowImportCommand(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a workflow document as a new saved workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.ParseFile(args[0], app.Catalog)
			if err != nil {
				return err
			}
			wf.ID = ""
			wf.CreatedAt = time.Time{}
			wf.RunCount = 0
			wf.LastRun = nil
			if name != "" {
				wf.Name = name
			}

			report := validateWorkflow(app.Catalog, wf)
			for _, w := range report.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}

			saved, err := app.Repo.SaveFull(cmd.Context(), wf)
			if err != nil {
				return fmt.Errorf("failed to save workflow: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Override the workflow name")
	return cmd
}
