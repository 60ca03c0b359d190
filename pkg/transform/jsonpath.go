package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup resolves a gjson path ("user.name", "rows.0.id", "rows.#") against
// data. The second result is false when the path matches nothing.
func Lookup(path string, data any) (any, bool, error) {
	if data == nil {
		return nil, false, ErrNilData
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false, ErrInvalidPath
	}
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal data: %w", err)
	}

	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return nil, false, nil
	}
	return result.Value(), true, nil
}

// LookupString resolves path and renders the match as text. Objects and
// arrays are rendered as compact JSON.
func LookupString(path string, data any) (string, bool, error) {
	if data == nil {
		return "", false, ErrNilData
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal data: %w", err)
	}
	result := gjson.GetBytes(raw, strings.TrimPrefix(strings.TrimSpace(path), "$."))
	if !result.Exists() {
		return "", false, nil
	}
	if result.IsObject() || result.IsArray() {
		return result.Raw, true, nil
	}
	return result.String(), true, nil
}
