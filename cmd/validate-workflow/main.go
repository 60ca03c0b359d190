// Command validate-workflow checks workflow documents without a configured
// store: structure, catalog references, node configuration and embedded
// credentials. It exits non-zero when any file is invalid.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/workflow"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <workflow-file>...\n", os.Args[0])
		os.Exit(1)
	}

	cat := catalog.Default()
	failed := false
	for _, path := range os.Args[1:] {
		if err := validateFile(cat, path); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func validateFile(cat *catalog.Catalog, path string) error {
	wf, err := workflow.ParseFile(path, cat)
	if err != nil {
		return err
	}

	var errs []error
	for _, n := range wf.Nodes {
		def, err := cat.MustLookup(n.Type, n.Category)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := catalog.ValidateConfig(def, n.Configuration); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.ID, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	fmt.Printf("✓ Workflow '%s' is valid\n", wf.Name)
	fmt.Printf("  - Nodes: %d\n", len(wf.Nodes))
	fmt.Printf("  - Connections: %d\n", len(wf.Connections))
	if cycle := wf.FindCycle(); len(cycle) > 0 {
		fmt.Printf("  ! Cycle through %v; repeated nodes are skipped at run time\n", cycle)
	}
	for _, w := range workflow.ScanForCredentials(wf) {
		fmt.Printf("  ! %s\n", w)
	}
	return nil
}
