package transform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates sandboxed expressions against a variable map.
// Supported syntax is the expr-lang language: comparisons, && || !, arithmetic,
// member access and the usual builtins. Unknown names evaluate to nil.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate runs expression with env as its variables.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, env map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateExpression(expression); err != nil {
		return nil, err
	}

	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	if env == nil {
		env = map[string]any{}
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return result, nil
}

// EvaluateBool evaluates an expression that must yield a boolean.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, env map[string]any) (bool, error) {
	result, err := e.Evaluate(ctx, expression, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrNotBoolean, result)
	}
	return b, nil
}

// Compile checks expression syntax without running it.
func (e *Evaluator) Compile(expression string) error {
	if err := validateExpression(expression); err != nil {
		return err
	}
	_, err := e.program(expression)
	return err
}

func (e *Evaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	e.mu.Lock()
	e.cache[expression] = program
	e.mu.Unlock()
	return program, nil
}

// validateExpression rejects expressions that reach for host facilities.
func validateExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	unsafePatterns := []string{
		"os.",
		"exec.",
		"http.",
		"net.",
		"syscall.",
		"unsafe.",
		"__proto__",
		"readfile",
		"writefile",
	}
	lower := strings.ToLower(expression)
	for _, pattern := range unsafePatterns {
		if strings.Contains(lower, pattern) {
			return ErrUnsafeOperation
		}
	}
	return nil
}

// Env builds the variable map of an expression evaluated against data: every
// top-level key of data plus "input" bound to data itself.
func Env(data map[string]any) map[string]any {
	env := make(map[string]any, len(data)+1)
	for k, v := range data {
		env[k] = v
	}
	env["input"] = data
	return env
}
