package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/transform"
	"github.com/dshills/autoflow/pkg/workflow"
)

// Builtins implements real executors for node types whose behavior needs no
// external system.
type Builtins struct {
	evaluator *transform.Evaluator
	renderer  *transform.Renderer

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewBuiltins returns the built-in executors with a lenient template renderer.
func NewBuiltins() *Builtins {
	return &Builtins{
		evaluator: transform.NewEvaluator(),
		renderer:  transform.NewRenderer(),
		Now:       time.Now,
		Sleep:     sleepContext,
	}
}

// RegisterBuiltins binds the built-in executors to their node types on r.
func RegisterBuiltins(r *Registry) *Builtins {
	b := NewBuiltins()
	r.RegisterType("if", ExecutorFunc(b.If))
	r.RegisterType("format", ExecutorFunc(b.Format))
	r.RegisterType("delay", ExecutorFunc(b.Delay))
	r.RegisterType("schedule", ExecutorFunc(b.Schedule))
	r.RegisterType("filter", ExecutorFunc(b.Filter))
	return b
}

// If evaluates the "condition" expression against the input.
func (b *Builtins) If(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	condition := configString(node, "condition", "")
	if condition == "" {
		return nil, fmt.Errorf("condition is empty")
	}
	ok, err := b.evaluator.EvaluateBool(ctx, condition, transform.Env(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate condition: %w", err)
	}
	path := "false"
	if ok {
		path = "true"
	}
	return types.Payload{"evaluated": true, "result": ok, "path": path}, nil
}

// Format renders the "template" config and stores the text under "outputKey".
func (b *Builtins) Format(_ context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	text, err := b.renderer.Render(configString(node, "template", ""), input)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return types.Payload{configString(node, "outputKey", "text"): text}, nil
}

// Delay waits "duration" units before passing the input through.
func (b *Builtins) Delay(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	amount, _ := node.Configuration["duration"].AsNumber()
	if amount < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}

	unit := time.Minute
	switch u := configString(node, "unit", "minutes"); u {
	case "seconds":
		unit = time.Second
	case "minutes":
	case "hours":
		unit = time.Hour
	default:
		return nil, fmt.Errorf("unknown time unit %q", u)
	}

	wait := time.Duration(amount * float64(unit))
	if err := b.Sleep(ctx, wait); err != nil {
		return nil, err
	}

	out := input.Clone()
	if out == nil {
		out = types.Payload{}
	}
	out["delayed"] = true
	out["waited"] = wait.String()
	return out, nil
}

// Schedule fires the trigger and reports the next activation of its cron
// expression.
func (b *Builtins) Schedule(_ context.Context, node workflow.Node, _ types.Payload) (types.Payload, error) {
	spec := configString(node, "cronExpression", "0 0 * * *")
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	loc, err := time.LoadLocation(configString(node, "timezone", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	now := b.Now().In(loc)
	return types.Payload{
		"triggered": true,
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"nextRun":   sched.Next(now).UTC().Format(time.RFC3339),
	}, nil
}

// Filter keeps the elements of the input "rows" array for which the
// "conditions" expression holds. Each row is exposed as "row" and, when it is
// an object, through its own fields.
func (b *Builtins) Filter(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	rows, _ := input["rows"].([]any)
	condition := configString(node, "conditions", "")

	kept := make([]any, 0, len(rows))
	for i, row := range rows {
		if condition == "" {
			kept = append(kept, row)
			continue
		}
		fields, _ := row.(map[string]any)
		env := transform.Env(fields)
		env["row"] = row
		ok, err := b.evaluator.EvaluateBool(ctx, condition, env)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			kept = append(kept, row)
		}
	}

	return types.Payload{
		"processed":    true,
		"operation":    node.Type,
		"rows":         kept,
		"rowsAffected": float64(len(kept)),
	}, nil
}

func configString(node workflow.Node, field, fallback string) string {
	if s, ok := node.Configuration[field].AsString(); ok && s != "" {
		return s
	}
	return fallback
}
