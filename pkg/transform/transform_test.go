package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_EvaluateBool(t *testing.T) {
	ev := NewEvaluator()
	ctx := context.Background()
	data := map[string]any{"value": 150.0, "status": "approved", "user": map[string]any{"tier": "gold"}}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr error
	}{
		{"comparison", "value > 100", true, nil},
		{"or", `value < 10 || status == "approved"`, true, nil},
		{"nested", `user.tier == "gold"`, true, nil},
		{"input binding", `input.value == 150`, true, nil},
		{"undefined is nil", `missing == nil`, true, nil},
		{"not boolean", "value + 1", false, ErrNotBoolean},
		{"syntax", "value >", false, ErrInvalidExpression},
		{"unsafe", `os.Getenv("HOME") == ""`, false, ErrUnsafeOperation},
		{"empty", "  ", false, ErrInvalidExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.EvaluateBool(ctx, tt.expr, Env(data))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_CachesAcrossEnvShapes(t *testing.T) {
	ev := NewEvaluator()
	ctx := context.Background()

	ok, err := ev.EvaluateBool(ctx, "x > 1", map[string]any{"x": 2})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.EvaluateBool(ctx, "x > 1", map[string]any{"x": 0.5, "y": "extra"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEvaluator().Evaluate(ctx, "1 == 1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookup(t *testing.T) {
	data := map[string]any{"rows": []any{map[string]any{"id": 1.0}, map[string]any{"id": 2.0}}}

	v, ok, err := Lookup("rows.1.id", data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok, err = Lookup("$.rows.#", data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok, err = Lookup("rows.9.id", data)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Lookup("a", nil)
	assert.ErrorIs(t, err, ErrNilData)
}

func TestRenderer_Render(t *testing.T) {
	data := map[string]any{
		"user":  map[string]any{"name": "Ada"},
		"count": 3.0,
		"tags":  []any{"a", "b"},
	}

	r := NewRenderer()
	out, err := r.Render("Hi {{ user.name }}, {{count}} new {{tags}}{{missing}}", data)
	require.NoError(t, err)
	assert.Equal(t, `Hi Ada, 3 new ["a","b"]`, out)

	r.Strict = true
	_, err = r.Render("{{missing}}", data)
	assert.ErrorIs(t, err, ErrUndefinedVariable)

	_, err = r.Render("{{user.name", data)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"date", "user.id"}, Placeholders("export-{{date}}-{{ user.id }}"))
	assert.Nil(t, Placeholders("plain"))
}
