package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueOf_Variants(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"string", "hello", KindString},
		{"float", 1.5, KindNumber},
		{"int", 3, KindNumber},
		{"bool", true, KindBool},
		{"object", map[string]any{"a": 1}, KindStructured},
		{"array", []any{"x", 2}, KindStructured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValueOf(tt.in).Kind())
		})
	}
}

func TestValue_JSONUsesNativeForm(t *testing.T) {
	cfg := Config{
		"to":       String("a@b.co"),
		"duration": Number(5),
		"enabled":  Bool(false),
		"headers":  Structured(map[string]any{"x": "y"}),
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"a@b.co","duration":5,"enabled":false,"headers":{"x":"y"}}`, string(data))

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	for k, v := range cfg {
		assert.True(t, v.Equal(decoded[k]), "field %s", k)
	}
}

func TestValue_YAMLNormalizesMaps(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("rules:\n  1: one\nlimit: 10\n"), &cfg)
	require.NoError(t, err)

	n, ok := cfg["limit"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 10.0, n)

	rules, ok := cfg["rules"].Interface().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "one", rules["1"])
}

func TestConfig_CloneIsDeep(t *testing.T) {
	original := Config{"obj": Structured(map[string]any{"k": "v"})}
	clone := original.Clone()

	inner := clone["obj"].Interface().(map[string]any)
	inner["k"] = "changed"

	assert.Equal(t, "v", original["obj"].Interface().(map[string]any)["k"])
}

func TestPayloadOf_WrapsNonObjects(t *testing.T) {
	assert.Equal(t, Payload{}, PayloadOf(nil))
	assert.Equal(t, Payload{"value": 42.0}, PayloadOf(42.0))
	assert.Equal(t, Payload{"a": 1}, PayloadOf(map[string]any{"a": 1}))
}

func TestNewIDs_HavePrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewNodeID().String(), "node-"))
	assert.True(t, strings.HasPrefix(NewConnectionID().String(), "conn-"))
	assert.True(t, strings.HasPrefix(NewWorkflowID().String(), "workflow-"))
	assert.True(t, strings.HasPrefix(NewLogID().String(), "log-"))
	assert.NotEqual(t, NewNodeID(), NewNodeID())
}
