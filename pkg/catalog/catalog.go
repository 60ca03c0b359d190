// Package catalog holds the registry of node definitions: the node types a
// workflow may contain, their ports and their configuration schema.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// ErrDefinitionNotFound is returned when no definition exists for a (type, category) pair.
var ErrDefinitionNotFound = errors.New("node definition not found")

// Category groups node types by their role in a workflow.
type Category string

const (
	CategoryTrigger   Category = "trigger"
	CategoryAction    Category = "action"
	CategoryData      Category = "data"
	CategoryAI        Category = "ai"
	CategoryCondition Category = "condition"
	CategoryUtility   Category = "utility"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryTrigger,
	CategoryAction,
	CategoryData,
	CategoryAI,
	CategoryCondition,
	CategoryUtility,
}

// FieldType is the editor type of a configuration field.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldNumber     FieldType = "number"
	FieldSelect     FieldType = "select"
	FieldBoolean    FieldType = "boolean"
	FieldCode       FieldType = "code"
	FieldTextarea   FieldType = "textarea"
	FieldJSON       FieldType = "json"
	FieldDate       FieldType = "date"
	FieldTime       FieldType = "time"
	FieldDateTime   FieldType = "datetime"
	FieldColor      FieldType = "color"
	FieldFile       FieldType = "file"
	FieldEmail      FieldType = "email"
	FieldURL        FieldType = "url"
	FieldConnection FieldType = "connection"
	FieldVariable   FieldType = "variable"
)

// Option is one choice of a select field.
type Option struct {
	Value string `json:"value" yaml:"value" validate:"required"`
	Label string `json:"label" yaml:"label"`
}

// ConfigField describes one configuration input of a node type.
type ConfigField struct {
	Name         string       `json:"name" yaml:"name" validate:"required"`
	Label        string       `json:"label" yaml:"label" validate:"required"`
	Type         FieldType    `json:"type" yaml:"type" validate:"required,oneof=text number select boolean code textarea json date time datetime color file email url connection variable"`
	Required     bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Default      *types.Value `json:"default,omitempty" yaml:"default,omitempty" validate:"-"`
	Placeholder  string       `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options      []Option     `json:"options,omitempty" yaml:"options,omitempty" validate:"required_if=Type select,dive"`
	Min          *float64     `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64     `json:"max,omitempty" yaml:"max,omitempty"`
	Step         *float64     `json:"step,omitempty" yaml:"step,omitempty"`
	Hint         string       `json:"hint,omitempty" yaml:"hint,omitempty"`
	Validation   string       `json:"validation,omitempty" yaml:"validation,omitempty"`
	LanguageMode string       `json:"languageMode,omitempty" yaml:"languageMode,omitempty"`
}

// NodeDefinition is the immutable template a node is instantiated from.
type NodeDefinition struct {
	Type         string        `json:"type" yaml:"type" validate:"required"`
	Category     Category      `json:"category" yaml:"category" validate:"required,oneof=trigger action data ai condition utility"`
	Label        string        `json:"label" yaml:"label" validate:"required"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	Icon         string        `json:"icon,omitempty" yaml:"icon,omitempty"`
	InputsCount  int           `json:"inputsCount" yaml:"inputsCount" validate:"gte=0"`
	OutputsCount int           `json:"outputsCount" yaml:"outputsCount" validate:"gte=0"`
	OutputPorts  []string      `json:"outputPorts,omitempty" yaml:"outputPorts,omitempty"`
	ConfigFields []ConfigField `json:"configFields" yaml:"configFields" validate:"dive"`
	Examples     []string      `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Key returns the unique lookup key of the definition.
func (d NodeDefinition) Key() string {
	return key(d.Type, d.Category)
}

// Field returns the named configuration field.
func (d NodeDefinition) Field(name string) (ConfigField, bool) {
	for _, f := range d.ConfigFields {
		if f.Name == name {
			return f, true
		}
	}
	return ConfigField{}, false
}

// Defaults returns a configuration holding exactly the declared default of
// every field that has one.
func (d NodeDefinition) Defaults() types.Config {
	cfg := types.Config{}
	for _, f := range d.ConfigFields {
		if f.Default != nil {
			cfg[f.Name] = *f.Default
		}
	}
	return cfg
}

// Ports returns the input and output port names of the definition. A single
// port is named "input" or "output"; several are numbered from 1.
func (d NodeDefinition) Ports() (inputs, outputs []string) {
	inputs = portNames("input", d.InputsCount)
	if len(d.OutputPorts) > 0 {
		outputs = slices.Clone(d.OutputPorts)
	} else {
		outputs = portNames("output", d.OutputsCount)
	}
	return inputs, outputs
}

func portNames(base string, n int) []string {
	switch {
	case n <= 0:
		return []string{}
	case n == 1:
		return []string{base}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", base, i+1)
	}
	return names
}

func key(nodeType string, category Category) string {
	return string(category) + "/" + nodeType
}

// Catalog is a read-only registry of node definitions.
type Catalog struct {
	defs  []NodeDefinition
	index map[string]int
}

// New builds a catalog from definitions. Each definition is validated and
// (type, category) pairs must be unique.
func New(defs ...NodeDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]NodeDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		if _, exists := c.index[d.Key()]; exists {
			return nil, fmt.Errorf("duplicate node definition %s", d.Key())
		}
		c.index[d.Key()] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// Lookup resolves a node definition by type and category.
func (c *Catalog) Lookup(nodeType string, category Category) (NodeDefinition, bool) {
	i, ok := c.index[key(nodeType, category)]
	if !ok {
		return NodeDefinition{}, false
	}
	return c.defs[i], true
}

// MustLookup is Lookup returning ErrDefinitionNotFound when the pair is unknown.
func (c *Catalog) MustLookup(nodeType string, category Category) (NodeDefinition, error) {
	def, ok := c.Lookup(nodeType, category)
	if !ok {
		return NodeDefinition{}, fmt.Errorf("%w: %s/%s", ErrDefinitionNotFound, category, nodeType)
	}
	return def, nil
}

// List returns every definition in registration order.
func (c *Catalog) List() []NodeDefinition {
	return append([]NodeDefinition(nil), c.defs...)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// ByCategory returns the definitions of one category.
func (c *Catalog) ByCategory(category Category) []NodeDefinition {
	var out []NodeDefinition
	for _, d := range c.defs {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// Search returns definitions whose type, label or description contains text,
// ignoring case. An empty query returns everything.
func (c *Catalog) Search(text string) []NodeDefinition {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return c.List()
	}
	var out []NodeDefinition
	for _, d := range c.defs {
		if strings.Contains(strings.ToLower(d.Type), q) ||
			strings.Contains(strings.ToLower(d.Label), q) ||
			strings.Contains(strings.ToLower(d.Description), q) {
			out = append(out, d)
		}
	}
	return out
}

// Merge returns a new catalog with defs added. A definition with an existing
// (type, category) pair replaces the earlier one in place.
func (c *Catalog) Merge(defs ...NodeDefinition) (*Catalog, error) {
	merged := c.List()
	for _, d := range defs {
		if i, ok := c.index[d.Key()]; ok {
			merged[i] = d
			continue
		}
		merged = append(merged, d)
	}
	return New(dedupe(merged)...)
}

// dedupe keeps the last occurrence of each key at the position of the first.
func dedupe(defs []NodeDefinition) []NodeDefinition {
	pos := make(map[string]int, len(defs))
	out := make([]NodeDefinition, 0, len(defs))
	for _, d := range defs {
		if i, ok := pos[d.Key()]; ok {
			out[i] = d
			continue
		}
		pos[d.Key()] = len(out)
		out = append(out, d)
	}
	return out
}

// Types returns the sorted list of distinct node type names.
func (c *Catalog) Types() []string {
	seen := make(map[string]struct{}, len(c.defs))
	for _, d := range c.defs {
		seen[d.Type] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
