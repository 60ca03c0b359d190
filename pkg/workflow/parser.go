package workflow

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/autoflow/pkg/catalog"
)

// DocumentVersion is the version written into exported workflow files.
const DocumentVersion = "1"

// document is the on-disk form of an exported workflow.
type document struct {
	Version  string `yaml:"version"`
	Workflow `yaml:",inline"`
}

// Parse decodes a workflow document and validates it against cat. A nil
// catalog skips the definition check. Run state is reset: every node comes
// back idle with no test result.
func Parse(yamlBytes []byte, cat *catalog.Catalog) (*Workflow, error) {
	if len(yamlBytes) == 0 {
		return nil, errors.New("workflow document is empty")
	}

	var doc document
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	if doc.Version != "" && doc.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported workflow document version %q", doc.Version)
	}
	if doc.Name == "" {
		return nil, errors.New("workflow name is required")
	}

	wf := doc.Workflow
	if wf.Tags == nil {
		wf.Tags = []string{}
	}
	if wf.Nodes == nil {
		wf.Nodes = []Node{}
	}
	if wf.Connections == nil {
		wf.Connections = []Connection{}
	}
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		n.Status = StatusIdle
		n.TestResult = nil
		if n.Size == (Size{}) {
			n.Size = Size{Width: DefaultNodeWidth, Height: DefaultNodeHeight}
		}
		if cat != nil && (n.Inputs == nil || n.Outputs == nil) {
			if def, ok := cat.Lookup(n.Type, n.Category); ok {
				n.Inputs, n.Outputs = def.Ports()
			}
		}
	}

	if err := wf.Validate(cat); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ParseFile reads and parses a workflow document.
func ParseFile(filePath string, cat *catalog.Catalog) (*Workflow, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data, cat)
}

// ToYAML encodes wf as a workflow document, including run state.
func ToYAML(wf *Workflow) ([]byte, error) {
	if wf == nil {
		return nil, errors.New("workflow cannot be nil")
	}
	data, err := yaml.Marshal(document{Version: DocumentVersion, Workflow: *wf})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow to YAML: %w", err)
	}
	return data, nil
}
