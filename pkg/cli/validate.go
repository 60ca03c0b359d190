package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// validationReport collects the problems of one workflow.
type validationReport struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r validationReport) ok() bool { return len(r.Errors) == 0 }

// validateWorkflow checks structure, node configuration, cycles and
// plain-text credentials. Cycles and credentials are warnings only.
func validateWorkflow(cat *catalog.Catalog, wf *workflow.Workflow) validationReport {
	report := validationReport{Errors: []string{}, Warnings: []string{}}

	if err := wf.Validate(cat); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	for _, n := range wf.Nodes {
		def, ok := cat.Lookup(n.Type, n.Category)
		if !ok {
			continue
		}
		if err := catalog.ValidateConfig(def, n.Configuration); err != nil {
			var verr *catalog.ValidationError
			if errors.As(err, &verr) {
				for _, fe := range verr.Errors {
					report.Errors = append(report.Errors, fmt.Sprintf("node %s (%s): %s: %s", n.ID, n.Label, fe.Field, fe.Message))
				}
				continue
			}
			report.Errors = append(report.Errors, fmt.Sprintf("node %s (%s): %v", n.ID, n.Label, err))
		}
	}
	if len(wf.Nodes) == 0 {
		report.Warnings = append(report.Warnings, "workflow has no nodes")
	}
	if cycle := wf.FindCycle(); cycle != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("cycle detected: %v; the run stops when a branch revisits a node", cycle))
	}
	for _, w := range workflow.ScanForCredentials(wf) {
		report.Warnings = append(report.Warnings, w.String())
	}
	return report
}

func newWorkflowValidateCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <workflow-id>",
		Short: "Validate a saved workflow",
		Long: `Validate the structure and node configuration of a saved workflow.

Checks:
  - node and connection ids are unique
  - every node resolves to a catalog definition
  - connections reference existing nodes and have a known type
  - configuration values satisfy their field definitions

Cycles and configuration values that look like plain-text credentials are
reported as warnings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.Repo.LoadFull(cmd.Context(), types.WorkflowID(args[0]))
			if err != nil {
				return err
			}
			report := validateWorkflow(app.Catalog, wf)

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				for _, e := range report.Errors {
					_, _ = fmt.Fprintf(out, "%s✗%s %s\n", colorRed, colorReset, e)
				}
				for _, w := range report.Warnings {
					_, _ = fmt.Fprintf(out, "%s!%s %s\n", colorYellow, colorReset, w)
				}
				if report.ok() {
					_, _ = fmt.Fprintf(out, "✓ Workflow %s is valid\n", wf.Name)
				}
			}

			if !report.ok() {
				return fmt.Errorf("workflow validation failed with %d error(s)", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the report as JSON")
	return cmd
}
