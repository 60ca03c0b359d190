package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind reports which variant a Value holds.
type Kind int

const (
	// KindNull is the zero Value.
	KindNull Kind = iota
	// KindString holds a string.
	KindString
	// KindNumber holds a float64.
	KindNumber
	// KindBool holds a boolean.
	KindBool
	// KindStructured holds an arbitrary JSON-like value (object or array).
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindStructured:
		return "structured"
	default:
		return "null"
	}
}

// Value is a node configuration value. It holds exactly one of string,
// number, boolean or a structured JSON-like value.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
	v    any
}

// String creates a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number creates a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Structured creates a structured Value. Scalars passed here are normalized
// to their scalar variant.
func Structured(v any) Value { return ValueOf(v) }

// ValueOf converts a decoded JSON/YAML value into a Value.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	default:
		return Value{kind: KindStructured, v: normalize(t)}
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the null Value.
func (v Value) IsZero() bool { return v.kind == KindNull }

// AsString returns the string variant.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsNumber returns the numeric variant.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsBool returns the boolean variant.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the plain Go representation of v.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	case KindStructured:
		return deepCopy(v.v)
	default:
		return nil
	}
}

// Text renders v as a human readable string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStructured:
		data, err := json.Marshal(v.v)
		if err != nil {
			return fmt.Sprint(v.v)
		}
		return string(data)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindStructured {
		a, errA := json.Marshal(v.v)
		b, errB := json.Marshal(other.v)
		return errA == nil && errB == nil && bytes.Equal(a, b)
	}
	return v.s == other.s && v.n == other.n && v.b == other.b
}

// MarshalJSON encodes v as its native JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	*v = ValueOf(raw)
	return nil
}

// MarshalYAML encodes v as its native YAML form.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

// UnmarshalYAML decodes any YAML node.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	*v = ValueOf(raw)
	return nil
}

// Config maps configuration field names to values.
type Config map[string]Value

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		if v.kind == KindStructured {
			v.v = deepCopy(v.v)
		}
		out[k] = v
	}
	return out
}

// Payload is the data passed between nodes and returned by executors.
type Payload map[string]any

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return deepCopy(map[string]any(p)).(map[string]any)
}

// PayloadOf wraps an arbitrary decoded JSON value as a Payload. Objects are
// used as-is; any other value is placed under the "value" key.
func PayloadOf(v any) Payload {
	switch t := v.(type) {
	case nil:
		return Payload{}
	case Payload:
		return t
	case map[string]any:
		return Payload(t)
	default:
		return Payload{"value": t}
	}
}

// normalize turns YAML's map[interface{}]interface{} and typed slices into
// JSON-compatible shapes.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case Payload:
		return normalize(map[string]any(t))
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return t
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case Payload:
		return deepCopy(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return t
	}
}
