package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// catalogFile is the on-disk format of a catalog extension. JSON is valid YAML,
// so both encodings are accepted.
type catalogFile struct {
	Definitions []NodeDefinition `yaml:"definitions" json:"definitions"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defs, err := Parse(builtinYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: invalid built-in definitions: %v", err))
		}
		c, err := New(defs...)
		if err != nil {
			panic(fmt.Sprintf("catalog: invalid built-in definitions: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse decodes definitions from YAML or JSON.
func Parse(data []byte) ([]NodeDefinition, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for _, d := range f.Definitions {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
	}
	return f.Definitions, nil
}

// LoadFile reads a catalog extension file and merges it over the built-in
// definitions.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Default().Merge(defs...)
}

func validateDefinition(d NodeDefinition) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid node definition %q: %w", d.Key(), err)
	}
	if len(d.OutputPorts) > 0 && len(d.OutputPorts) != d.OutputsCount {
		return fmt.Errorf("invalid node definition %q: %d output ports declared for outputsCount %d",
			d.Key(), len(d.OutputPorts), d.OutputsCount)
	}
	seen := make(map[string]struct{}, len(d.ConfigFields))
	for _, f := range d.ConfigFields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("invalid node definition %q: duplicate field %q", d.Key(), f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Default != nil {
			if err := checkField(f, *f.Default); err != nil {
				return fmt.Errorf("invalid node definition %q: default of %q: %w", d.Key(), f.Name, err)
			}
		}
	}
	return nil
}
