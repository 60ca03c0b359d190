package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError describes one invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every configuration problem of one node.
type ValidationError struct {
	NodeType string
	Errors   []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.NodeType, strings.Join(parts, "; "))
}

// ValidateConfig checks a complete node configuration against the definition:
// required fields, value types, select options, numeric bounds, patterns and
// cron/timezone syntax. Unknown keys are rejected.
func ValidateConfig(def NodeDefinition, cfg types.Config) error {
	doc := make(map[string]any, len(cfg))
	for k, v := range cfg {
		doc[k] = v.Interface()
	}

	verr := &ValidationError{NodeType: def.Type}
	if err := runSchema(objectSchema(def), doc, verr); err != nil {
		return err
	}
	for _, f := range def.ConfigFields {
		if v, ok := cfg[f.Name]; ok {
			if msg := checkSyntax(f, v); msg != "" {
				verr.Errors = append(verr.Errors, FieldError{Field: f.Name, Message: msg})
			}
		}
	}

	if len(verr.Errors) > 0 {
		sort.SliceStable(verr.Errors, func(i, j int) bool { return verr.Errors[i].Field < verr.Errors[j].Field })
		return verr
	}
	return nil
}

// ValidateField checks a single value for the named field. Used for
// edit-time validation where other fields may still be incomplete.
func ValidateField(def NodeDefinition, name string, v types.Value) error {
	f, ok := def.Field(name)
	if !ok {
		return &ValidationError{NodeType: def.Type, Errors: []FieldError{{Field: name, Message: "unknown field"}}}
	}
	if err := checkField(f, v); err != nil {
		return &ValidationError{NodeType: def.Type, Errors: []FieldError{{Field: name, Message: err.Error()}}}
	}
	return nil
}

func checkField(f ConfigField, v types.Value) error {
	verr := &ValidationError{}
	doc := map[string]any{f.Name: v.Interface()}
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{f.Name: fieldSchema(f)},
	}
	if f.Required {
		schema["required"] = []string{f.Name}
	}
	if err := runSchema(schema, doc, verr); err != nil {
		return err
	}
	if len(verr.Errors) > 0 {
		return fmt.Errorf("%s", verr.Errors[0].Message)
	}
	if msg := checkSyntax(f, v); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func runSchema(schema map[string]any, doc map[string]any, verr *ValidationError) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if p, ok := desc.Details()["property"].(string); ok {
				field = p
			}
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return nil
}

func objectSchema(def NodeDefinition) map[string]any {
	props := make(map[string]any, len(def.ConfigFields))
	required := []string{}
	for _, f := range def.ConfigFields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// fieldSchema maps a config field onto a JSON Schema fragment.
func fieldSchema(f ConfigField) map[string]any {
	s := map[string]any{}
	switch f.Type {
	case FieldNumber:
		s["type"] = "number"
		if f.Min != nil {
			s["minimum"] = *f.Min
		}
		if f.Max != nil {
			s["maximum"] = *f.Max
		}
	case FieldBoolean:
		s["type"] = "boolean"
	case FieldJSON:
		// any JSON value
	case FieldSelect:
		enum := make([]any, len(f.Options))
		for i, o := range f.Options {
			enum[i] = o.Value
		}
		s["enum"] = enum
	case FieldEmail:
		s["type"] = "string"
		s["format"] = "email"
	case FieldURL:
		s["type"] = "string"
		s["format"] = "uri"
	default:
		s["type"] = "string"
		if f.Required {
			s["minLength"] = 1
		}
	}
	if f.Validation != "" && f.Type != FieldNumber && f.Type != FieldBoolean {
		s["pattern"] = f.Validation
	}
	return s
}

// checkSyntax applies checks JSON Schema cannot express.
func checkSyntax(f ConfigField, v types.Value) string {
	s, ok := v.AsString()
	if !ok {
		return ""
	}
	switch f.Name {
	case "cronExpression":
		if _, err := cron.ParseStandard(s); err != nil {
			return fmt.Sprintf("invalid cron expression: %v", err)
		}
	case "timezone":
		if _, err := time.LoadLocation(s); err != nil {
			return fmt.Sprintf("unknown timezone %q", s)
		}
	}
	return ""
}
