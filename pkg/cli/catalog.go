package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/autoflow/pkg/catalog"
)

func newCatalogCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse node definitions",
	}
	cmd.AddCommand(newCatalogListCommand(app))
	cmd.AddCommand(newCatalogShowCommand(app))
	return cmd
}

func newCatalogListCommand(app *App) *cobra.Command {
	var (
		category string
		search   string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List node definitions",
		Long: `List the node definitions available to workflows.

Examples:
  autoflow catalog list
  autoflow catalog list --category action
  autoflow catalog list --search email`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := app.Catalog.Search(search)
			if category != "" {
				c := catalog.Category(category)
				filtered := defs[:0]
				for _, d := range defs {
					if d.Category == c {
						filtered = append(filtered, d)
					}
				}
				defs = filtered
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), defs)
			}
			if len(defs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No node definitions found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CATEGORY\tTYPE\tLABEL\tPORTS\tDESCRIPTION")
			for _, d := range defs {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
					d.Category, d.Type, d.Label, d.InputsCount, d.OutputsCount, truncateString(d.Description, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only show one category")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by type, label or description")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output definitions as JSON")
	return cmd
}

func newCatalogShowCommand(app *App) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "show <type>",
		Short: "Show a node definition and its configuration fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := findDefinition(app.Catalog, args[0], category)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (%s/%s)\n", def.Label, def.Category, def.Type)
			if def.Description != "" {
				_, _ = fmt.Fprintf(out, "%s\n", def.Description)
			}
			inputs, outputs := def.Ports()
			_, _ = fmt.Fprintf(out, "\nInputs:  %s\n", strings.Join(inputs, ", "))
			_, _ = fmt.Fprintf(out, "Outputs: %s\n", strings.Join(outputs, ", "))

			if len(def.ConfigFields) > 0 {
				_, _ = fmt.Fprintln(out, "\nConfiguration:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "  FIELD\tTYPE\tREQUIRED\tDEFAULT\tHINT")
				for _, f := range def.ConfigFields {
					dflt := ""
					if f.Default != nil {
						dflt = f.Default.Text()
					}
					req := ""
					if f.Required {
						req = "yes"
					}
					_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", f.Name, f.Type, req, dflt, f.Hint)
				}
				_ = w.Flush()
			}

			if len(def.Examples) > 0 {
				_, _ = fmt.Fprintln(out, "\nExamples:")
				for _, e := range def.Examples {
					_, _ = fmt.Fprintf(out, "  - %s\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category, required when the type exists in several")
	return cmd
}

// findDefinition looks a type up, inferring the category when it is unique.
func findDefinition(cat *catalog.Catalog, nodeType, category string) (catalog.NodeDefinition, error) {
	if category != "" {
		return cat.MustLookup(nodeType, catalog.Category(category))
	}
	var found []catalog.NodeDefinition
	for _, d := range cat.List() {
		if d.Type == nodeType {
			found = append(found, d)
		}
	}
	switch len(found) {
	case 0:
		return catalog.NodeDefinition{}, fmt.Errorf("%w: %s", catalog.ErrDefinitionNotFound, nodeType)
	case 1:
		return found[0], nil
	}
	cats := make([]string, len(found))
	for i, d := range found {
		cats[i] = string(d.Category)
	}
	return catalog.NodeDefinition{}, fmt.Errorf("node type %s exists in several categories (%s); use --category",
		nodeType, strings.Join(cats, ", "))
}
