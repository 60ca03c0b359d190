package transform

import (
	"fmt"
	"strings"
)

// Renderer substitutes {{path}} placeholders with values looked up in the
// data passed to Render. Paths use gjson syntax.
//
// In lenient mode (the default) unknown paths render as Default; in strict
// mode they fail with ErrUndefinedVariable.
type Renderer struct {
	Strict  bool
	Default string
}

// NewRenderer returns a lenient renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render processes template against data.
func (r *Renderer) Render(template string, data map[string]any) (string, error) {
	var out strings.Builder
	rest := template

	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			return "", fmt.Errorf("%w: unclosed placeholder at offset %d", ErrInvalidTemplate, len(template)-len(rest)+start)
		}
		out.WriteString(rest[:start])

		path := strings.TrimSpace(rest[start+2 : start+2+end])
		if path == "" {
			return "", fmt.Errorf("%w: empty placeholder", ErrInvalidTemplate)
		}
		value, ok, err := LookupString(path, data)
		if err != nil {
			return "", err
		}
		if !ok {
			if r.Strict {
				return "", fmt.Errorf("%w: %s", ErrUndefinedVariable, path)
			}
			value = r.Default
		}
		out.WriteString(value)
		rest = rest[start+2+end+2:]
	}

	return out.String(), nil
}

// Placeholders returns the paths referenced by template, in order.
func Placeholders(template string) []string {
	var paths []string
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			return paths
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			return paths
		}
		paths = append(paths, strings.TrimSpace(rest[start+2:start+2+end]))
		rest = rest[start+2+end+2:]
	}
}
