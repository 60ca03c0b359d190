package executors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/credential"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

func newNode(t *testing.T, nodeType string, category catalog.Category) workflow.Node {
	t.Helper()
	def, err := catalog.Default().MustLookup(nodeType, category)
	require.NoError(t, err)
	return workflow.NewNode(def, workflow.Position{})
}

func fixedMock() *Mock {
	m := NewInstantMock()
	m.Rand = func() float64 { return 0.75 }
	m.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestRegistry_Resolution(t *testing.T) {
	named := func(name string) Executor {
		return ExecutorFunc(func(context.Context, workflow.Node, types.Payload) (types.Payload, error) {
			return types.Payload{"by": name}, nil
		})
	}

	tests := []struct {
		name     string
		setup    func(r *Registry)
		node     workflow.Node
		expected string
		err      error
	}{
		{
			name: "type wins over category",
			setup: func(r *Registry) {
				r.RegisterCategory(catalog.CategoryAction, named("category"))
				r.RegisterType("email", named("type"))
			},
			node:     workflow.Node{Type: "email", Category: catalog.CategoryAction},
			expected: "type",
		},
		{
			name:     "category wins over fallback",
			setup:    func(r *Registry) { r.RegisterCategory(catalog.CategoryAction, named("category")) },
			node:     workflow.Node{Type: "email", Category: catalog.CategoryAction},
			expected: "category",
		},
		{
			name:     "fallback",
			setup:    func(r *Registry) { r.SetFallback(named("fallback")) },
			node:     workflow.Node{Type: "email", Category: catalog.CategoryAction},
			expected: "fallback",
		},
		{
			name:  "nothing registered",
			setup: func(*Registry) {},
			node:  workflow.Node{Type: "email", Category: catalog.CategoryAction},
			err:   ErrNoExecutor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			tt.setup(r)
			out, err := r.Execute(context.Background(), tt.node, types.Payload{})
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out["by"])
		})
	}
}

func TestMock_PayloadPerCategory(t *testing.T) {
	m := fixedMock()
	ctx := context.Background()

	tests := []struct {
		nodeType string
		category catalog.Category
		check    func(t *testing.T, out types.Payload)
	}{
		{"schedule", catalog.CategoryTrigger, func(t *testing.T, out types.Payload) {
			assert.Equal(t, true, out["triggered"])
			assert.Equal(t, "2024-05-01T12:00:00Z", out["timestamp"])
		}},
		{"email", catalog.CategoryAction, func(t *testing.T, out types.Payload) {
			assert.Equal(t, true, out["success"])
			assert.Equal(t, "email", out["actionPerformed"])
			assert.Equal(t, "Executed Send Email with 0 parameters", out["result"])
		}},
		{"join", catalog.CategoryData, func(t *testing.T, out types.Payload) {
			assert.Equal(t, true, out["processed"])
			assert.Equal(t, "join", out["operation"])
			assert.Equal(t, 76.0, out["rowsAffected"])
		}},
		{"analyze", catalog.CategoryAI, func(t *testing.T, out types.Payload) {
			assert.Equal(t, "GPT-4", out["aiModel"])
			assert.Equal(t, 75.0, out["confidence"])
		}},
		{"if", catalog.CategoryCondition, func(t *testing.T, out types.Payload) {
			assert.Equal(t, true, out["result"])
			assert.Equal(t, "true", out["path"])
		}},
		{"delay", catalog.CategoryUtility, func(t *testing.T, out types.Payload) {
			assert.Equal(t, "delay", out["utility"])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.nodeType, func(t *testing.T) {
			out, err := m.Execute(ctx, newNode(t, tt.nodeType, tt.category), nil)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}

	out, err := m.Execute(ctx, workflow.Node{Type: "custom", Category: "other"}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Payload{"executed": true, "nodeType": "custom"}, out)
}

func TestMock_DelayWindow(t *testing.T) {
	var slept time.Duration
	m := NewMock()
	m.Rand = func() float64 { return 0.5 }
	m.Sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	_, err := m.Execute(context.Background(), workflow.Node{Type: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, slept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Sleep = nil
	_, err = m.Execute(ctx, workflow.Node{Type: "x"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuiltins_If(t *testing.T) {
	b := NewBuiltins()
	node := newNode(t, "if", catalog.CategoryCondition)

	node.Configuration["condition"] = types.String("amount > 100")
	out, err := b.If(context.Background(), node, types.Payload{"amount": 150.0})
	require.NoError(t, err)
	assert.Equal(t, types.Payload{"evaluated": true, "result": true, "path": "true"}, out)

	out, err = b.If(context.Background(), node, types.Payload{"amount": 5.0})
	require.NoError(t, err)
	assert.Equal(t, "false", out["path"])

	node.Configuration["condition"] = types.String("amount + 1")
	_, err = b.If(context.Background(), node, types.Payload{"amount": 5.0})
	assert.Error(t, err)
}

func TestBuiltins_Format(t *testing.T) {
	b := NewBuiltins()
	node := newNode(t, "format", catalog.CategoryUtility)
	node.Configuration["template"] = types.String("Hello {{user.name}}, you have {{count}} items")

	out, err := b.Format(context.Background(), node, types.Payload{
		"user":  map[string]any{"name": "Ada"},
		"count": 3.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, you have 3 items", out["text"])
}

func TestBuiltins_Delay(t *testing.T) {
	b := NewBuiltins()
	var waited time.Duration
	b.Sleep = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	node := newNode(t, "delay", catalog.CategoryUtility)
	node.Configuration["duration"] = types.Number(2)
	node.Configuration["unit"] = types.String("seconds")

	out, err := b.Delay(context.Background(), node, types.Payload{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, waited)
	assert.Equal(t, "a", out["id"])
	assert.Equal(t, true, out["delayed"])

	node.Configuration["unit"] = types.String("fortnights")
	_, err = b.Delay(context.Background(), node, nil)
	assert.Error(t, err)
}

func TestBuiltins_Schedule(t *testing.T) {
	b := NewBuiltins()
	b.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	node := newNode(t, "schedule", catalog.CategoryTrigger)
	node.Configuration["cronExpression"] = types.String("0 * * * *")

	out, err := b.Schedule(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["triggered"])
	assert.Equal(t, "2024-05-01T13:00:00Z", out["nextRun"])

	node.Configuration["cronExpression"] = types.String("not cron")
	_, err = b.Schedule(context.Background(), node, nil)
	assert.Error(t, err)
}

func TestBuiltins_Filter(t *testing.T) {
	b := NewBuiltins()
	node := newNode(t, "filter", catalog.CategoryData)
	node.Configuration["conditions"] = types.String(`status == "active" && score >= 10`)

	out, err := b.Filter(context.Background(), node, types.Payload{"rows": []any{
		map[string]any{"id": 1.0, "status": "active", "score": 12.0},
		map[string]any{"id": 2.0, "status": "inactive", "score": 50.0},
		map[string]any{"id": 3.0, "status": "active", "score": 3.0},
	}})
	require.NoError(t, err)
	rows := out["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].(map[string]any)["id"])
	assert.Equal(t, 1.0, out["rowsAffected"])
}

func TestRegisterBuiltins_LeavesOtherTypesToFallback(t *testing.T) {
	r := NewRegistry(fixedMock())
	RegisterBuiltins(r)

	node := newNode(t, "format", catalog.CategoryUtility)
	node.Configuration["template"] = types.String("x={{x}}")
	out, err := r.Execute(context.Background(), node, types.Payload{"x": "1"})
	require.NoError(t, err)
	assert.Equal(t, "x=1", out["text"])

	out, err = r.Execute(context.Background(), newNode(t, "email", catalog.CategoryAction), nil)
	require.NoError(t, err)
	assert.Equal(t, "email", out["actionPerformed"])
}

func TestWithSecrets(t *testing.T) {
	keyring.MockInit()
	store := credential.NewKeyringStore("autoflow-executors-test")
	require.NoError(t, store.Set("hook", "https://hooks.example/secret"))

	var seen string
	next := ExecutorFunc(func(_ context.Context, n workflow.Node, _ types.Payload) (types.Payload, error) {
		seen, _ = n.Configuration["webhookUrl"].AsString()
		return types.Payload{}, nil
	})

	node := newNode(t, "notification", catalog.CategoryAction)
	node.Configuration["webhookUrl"] = types.String(credential.Ref("hook"))

	_, err := WithSecrets(store, next).Execute(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example/secret", seen)
	assert.Equal(t, "secret://hook", node.Configuration["webhookUrl"].Text())

	node.Configuration["webhookUrl"] = types.String(credential.Ref("missing"))
	_, err = WithSecrets(store, next).Execute(context.Background(), node, nil)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}
