package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

func newWorkflowCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Create, edit and manage saved workflows",
	}

	cmd.AddCommand(newWorkflowNewCommand(app))
	cmd.AddCommand(newWorkflowAddNodeCommand(app))
	cmd.AddCommand(newWorkflowConnectCommand(app))
	cmd.AddCommand(newWorkflowDisconnectCommand(app))
	cmd.AddCommand(newWorkflowRemoveNodeCommand(app))
	cmd.AddCommand(newWorkflowSetCommand(app))
	cmd.AddCommand(newWorkflowEnableCommand(app, true))
	cmd.AddCommand(newWorkflowEnableCommand(app, false))
	cmd.AddCommand(newWorkflowShowCommand(app))
	cmd.AddCommand(newWorkflowDeleteCommand(app))
	cmd.AddCommand(newWorkflowListCommand(app))
	cmd.AddCommand(newWorkflowSearchCommand(app))
	cmd.AddCommand(newWorkflowValidateCommand(app))
	cmd.AddCommand(newWorkflowExportCommand(app))
	cmd.AddCommand(newWorkflowImportCommand(app))

	return cmd
}

func newWorkflowNewCommand(app *App) *cobra.Command {
	var (
		description string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create and save an empty workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf := workflow.New(args[0], description)
			wf.Tags = append(wf.Tags, tags...)

			saved, err := app.Repo.SaveFull(cmd.Context(), wf)
			if err != nil {
				return fmt.Errorf("failed to save workflow: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Workflow description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag (repeatable)")
	return cmd
}

func newWorkflowAddNodeCommand(app *App) *cobra.Command {
	var (
		category string
		label    string
		x, y     float64
	)

	cmd := &cobra.Command{
		Use:   "add-node <workflow-id> <type>",
		Short: "Add a node instantiated from the catalog",
		Long: `Add a node instantiated from a catalog definition. The category is inferred
when the type is unique. The new node id is printed.

Examples:
  autoflow workflow add-node workflow-1234 schedule
  autoflow workflow add-node workflow-1234 email --label "Notify team" --x 250`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := findDefinition(app.Catalog, args[1], category)
			if err != nil {
				return err
			}

			var node workflow.Node
			err = app.editWorkflow(cmd.Context(), args[0], func(s *workflow.Store) error {
				n, err := s.AddNode(def.Type, def.Category, workflow.Position{X: x, Y: y})
				if err != nil {
					return err
				}
				if label != "" {
					if err := s.SetLabel(n.ID, label); err != nil {
						return err
					}
				}
				node = n
				return nil
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), node.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Node category")
	cmd.Flags().StringVar(&label, "label", "", "Node label (default: definition label)")
	cmd.Flags().Float64Var(&x, "x", 0, "Canvas x position")
	cmd.Flags().Float64Var(&y, "y", 0, "Canvas y position")
	return cmd
}

func newWorkflowConnectCommand(app *App) *cobra.Command {
	var (
		connType     string
		sourceHandle string
		targetHandle string
	)

	cmd := &cobra.Command{
		Use:   "connect <workflow-id> <source-node> <target-node>",
		Short: "Connect two nodes",
		Long: `Connect two nodes. Standard and conditional connections are followed when
the source succeeds, error connections when it fails.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn workflow.Connection
			err := app.editWorkflow(cmd.Context(), args[0], func(s *workflow.Store) error {
				c, err := s.Connect(workflow.Connection{
					SourceID:     types.NodeID(args[1]),
					TargetID:     types.NodeID(args[2]),
					SourceHandle: sourceHandle,
					TargetHandle: targetHandle,
					Type:         workflow.ConnectionType(connType),
				})
				conn = c
				return err
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), conn.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&connType, "type", string(workflow.ConnectionStandard), "Connection type: standard, conditional or error")
	cmd.Flags().StringVar(&sourceHandle, "source-handle", "", "Source port name")
	cmd.Flags().StringVar(&targetHandle, "target-handle", "", "Target port name")
	return cmd
}

func newWorkflowDisconnectCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <workflow-id> <connection-id>",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.editWorkflow(cmd.Context(), args[0], func(s *workflow.Store) error {
				if !s.Disconnect(types.ConnectionID(args[1])) {
					return fmt.Errorf("%w: %s", workflow.ErrConnectionNotFound, args[1])
				}
				return nil
			})
		},
	}
}

func newWorkflowRemoveNodeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-node <workflow-id> <node-id>",
		Short: "Remove a node and every connection touching it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.editWorkflow(cmd.Context(), args[0], func(s *workflow.Store) error {
				if !s.RemoveNode(types.NodeID(args[1])) {
					return fmt.Errorf("%w: %s", workflow.ErrNodeNotFound, args[1])
				}
				return nil
			})
		},
	}
}

func newWorkflowSetCommand(app *App) *cobra.Command {
	var (
		unset bool
		label string
	)

	cmd := &cobra.Command{
		Use:   "set <workflow-id> <node-id> [field] [value]",
		Short: "Set a node configuration field or label",
		Long: `Set a configuration field of a node. The value is validated against the
field definition: numbers, booleans and JSON are parsed according to the
field type. Values of the form secret://<name> are resolved from the
keyring at run time.

Examples:
  autoflow workflow set workflow-1234 node-5678 to team@example.com
  autoflow workflow set workflow-1234 node-5678 duration 30
  autoflow workflow set workflow-1234 node-5678 subject --unset
  autoflow workflow set workflow-1234 node-5678 --label "Daily mail"`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID := types.NodeID(args[1])
			if len(args) == 2 && label == "" {
				return fmt.Errorf("nothing to set: give a field and value or --label")
			}
			if len(args) == 3 && !unset {
				return fmt.Errorf("missing value for field %s (use --unset to remove it)", args[2])
			}

			return app.editWorkflow(cmd.Context(), args[0], func(s *workflow.Store) error {
				if label != "" {
					if err := s.SetLabel(nodeID, label); err != nil {
						return err
					}
				}
				if len(args) < 3 {
					return nil
				}
				field := args[2]
				if unset {
					return s.UnsetConfig(nodeID, field)
				}
				node, ok := s.Node(nodeID)
				if !ok {
					return fmt.Errorf("%w: %s", workflow.ErrNodeNotFound, nodeID)
				}
				def, err := app.Catalog.MustLookup(node.Type, node.Category)
				if err != nil {
					return err
				}
				v, err := parseFieldValue(def, field, args[3])
				if err != nil {
					return err
				}
				return s.SetConfig(nodeID, field, v)
			})
		},
	}

	cmd.Flags().BoolVar(&unset, "unset", false, "Remove the field from the configuration")
	cmd.Flags().StringVar(&label, "label", "", "Set the node label")
	return cmd
}

// parseFieldValue converts command line text to a Value of the field's type.
// Unknown fields are returned as strings and rejected by the store.
func parseFieldValue(def catalog.NodeDefinition, field, raw string) (types.Value, error) {
	f, ok := def.Field(field)
	if !ok {
		return types.String(raw), nil
	}
	switch f.Type {
	case catalog.FieldNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Value{}, fmt.Errorf("field %s expects a number: %w", field, err)
		}
		return types.Number(n), nil
	case catalog.FieldBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return types.Value{}, fmt.Errorf("field %s expects true or false: %w", field, err)
		}
		return types.Bool(b), nil
	case catalog.FieldJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return types.Value{}, fmt.Errorf("field %s expects JSON: %w", field, err)
		}
		return types.Structured(v), nil
	default:
		return types.String(raw), nil
	}
}

func newWorkflowEnableCommand(app *App, enabled bool) *cobra.Command {
	use, short := "enable", "Enable a node"
	if !enabled {
		use, short = "disable", "Disable a node; the run stops at it"
	}
	return &cobra.Command{
		Use:   use + " <workflow-id> <node-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.editWorkflow(cmd.Context(), args[0], func(s *workflow.Store) error {
				return s.SetEnabled(types.NodeID(args[1]), enabled)
			})
		},
	}
}

func newWorkflowShowCommand(app *App) *cobra.Command {
	var (
		asJSON bool
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show the nodes and connections of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.Repo.LoadFull(cmd.Context(), types.WorkflowID(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				return writeJSON(out, wf)
			case asYAML:
				data, err := workflow.ToYAML(wf)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			_, _ = fmt.Fprintf(out, "Workflow: %s\n", colorCyan+wf.Name+colorReset)
			_, _ = fmt.Fprintf(out, "ID: %s\n", wf.ID)
			if wf.Description != "" {
				_, _ = fmt.Fprintf(out, "Description: %s\n", wf.Description)
			}
			if len(wf.Tags) > 0 {
				_, _ = fmt.Fprintf(out, "Tags: %s\n", strings.Join(wf.Tags, ", "))
			}
			_, _ = fmt.Fprintf(out, "Runs: %d", wf.RunCount)
			if wf.LastRun != nil {
				_, _ = fmt.Fprintf(out, " (last %s)", wf.LastRun.Local().Format("2006-01-02 15:04:05"))
			}
			_, _ = fmt.Fprintln(out)

			_, _ = fmt.Fprintf(out, "\nNodes (%d):\n", len(wf.Nodes))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, n := range wf.Nodes {
				enabled := ""
				if !n.Enabled {
					enabled = colorGray + "disabled" + colorReset
				}
				_, _ = fmt.Fprintf(w, "  %s\t%s\t%s/%s\t%s\t%s\n",
					nodeStatusSymbol(n.Status), n.ID, n.Category, n.Type, n.Label, enabled)
			}
			_ = w.Flush()

			if len(wf.Connections) > 0 {
				_, _ = fmt.Fprintf(out, "\nConnections (%d):\n", len(wf.Connections))
				w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, c := range wf.Connections {
					_, _ = fmt.Fprintf(w, "  %s\t%s -> %s\t%s\n", c.ID, c.SourceID, c.TargetID, c.EffectiveType())
				}
				_ = w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the snapshot as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output the snapshot as YAML")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}

func newWorkflowDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workflow-id>",
		Short: "Delete a saved workflow and its run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Repo.DeleteSaved(cmd.Context(), types.WorkflowID(args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Workflow %s deleted\n", args[0])
			return nil
		},
	}
}

func newWorkflowListCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved workflows, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Repo.ListSaved(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}
			return printSavedWorkflows(cmd, entries, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newWorkflowSearchCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search saved workflows by name, description or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Repo.ListSaved(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}
			return printSavedWorkflows(cmd, workflow.Search(entries, args[0]), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printSavedWorkflows(cmd *cobra.Command, entries []workflow.SavedWorkflow, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []workflow.SavedWorkflow{}
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No workflows found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tRUNS\tLAST RUN\tUPDATED\tTAGS")
	for _, e := range entries {
		lastRun := "never"
		if e.LastRun != nil {
			lastRun = e.LastRun.Local().Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID, truncateString(e.Name, 30), e.RunCount, lastRun,
			e.UpdatedAt.Local().Format("2006-01-02 15:04"), strings.Join(e.Tags, ","))
	}
	return w.Flush()
}
