package executors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// Default delay window of the mock executor.
const (
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 1500 * time.Millisecond
)

// Mock simulates node execution. After a random delay in [MinDelay,
// MaxDelay) it returns a synthetic payload shaped by the node category.
// Rand, Now and Sleep may be replaced for deterministic tests.
type Mock struct {
	MinDelay time.Duration
	MaxDelay time.Duration

	Rand  func() float64
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewMock returns a mock executor with the default delay window.
func NewMock() *Mock {
	return &Mock{
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
		Rand:     rand.Float64,
		Now:      time.Now,
		Sleep:    sleepContext,
	}
}

// NewInstantMock returns a mock executor without delay.
func NewInstantMock() *Mock {
	m := NewMock()
	m.MinDelay, m.MaxDelay = 0, 0
	return m
}

// Execute waits for the simulated delay and returns the synthetic result.
func (m *Mock) Execute(ctx context.Context, node workflow.Node, _ types.Payload) (types.Payload, error) {
	if err := m.sleep(ctx, m.delay()); err != nil {
		return nil, err
	}
	return m.result(node), nil
}

func (m *Mock) delay() time.Duration {
	if m.MaxDelay <= m.MinDelay {
		return m.MinDelay
	}
	span := float64(m.MaxDelay - m.MinDelay)
	return m.MinDelay + time.Duration(m.random()*span)
}

func (m *Mock) result(node workflow.Node) types.Payload {
	now := m.now().UTC().Format(time.RFC3339Nano)

	switch node.Category {
	case catalog.CategoryTrigger:
		return types.Payload{"triggered": true, "timestamp": now}
	case catalog.CategoryAction:
		return types.Payload{
			"success":         true,
			"actionPerformed": node.Type,
			"timestamp":       now,
			"result":          fmt.Sprintf("Executed %s with %d parameters", node.Label, len(node.Configuration)),
		}
	case catalog.CategoryData:
		return types.Payload{
			"processed":    true,
			"operation":    node.Type,
			"rowsAffected": float64(int(m.random()*100) + 1),
			"sample": map[string]any{
				"id":    float64(123),
				"name":  "Sample Data",
				"value": m.random() * 1000,
			},
		}
	case catalog.CategoryAI:
		return types.Payload{
			"analyzed":   true,
			"aiModel":    "GPT-4",
			"confidence": m.random() * 100,
			"result":     fmt.Sprintf("AI analysis for %s completed successfully", node.Label),
		}
	case catalog.CategoryCondition:
		path := "false"
		if m.random() > 0.5 {
			path = "true"
		}
		return types.Payload{
			"evaluated": true,
			"result":    m.random() > 0.5,
			"path":      path,
		}
	case catalog.CategoryUtility:
		return types.Payload{"executed": true, "utility": node.Type, "timestamp": now}
	default:
		return types.Payload{"executed": true, "nodeType": node.Type}
	}
}

func (m *Mock) random() float64 {
	if m.Rand == nil {
		return rand.Float64()
	}
	return m.Rand()
}

func (m *Mock) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Mock) sleep(ctx context.Context, d time.Duration) error {
	if m.Sleep == nil {
		return sleepContext(ctx, d)
	}
	return m.Sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
