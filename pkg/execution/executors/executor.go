// Package executors provides the per-node computation used by the execution
// engine: an executor registry, a mock executor producing synthetic results
// per category, and a handful of built-in executors for common node types.
package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// ErrNoExecutor is returned when no executor is registered for a node.
var ErrNoExecutor = errors.New("no executor registered for node")

// Executor performs the work of a single node. The returned payload becomes
// the input of downstream nodes. A returned error is a node failure; its
// message is recorded in the execution log.
type Executor interface {
	Execute(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	return f(ctx, node, input)
}

// Registry resolves the executor of a node. Executors registered for a node
// type take precedence over executors registered for a category, which take
// precedence over the fallback.
type Registry struct {
	mu         sync.RWMutex
	byType     map[string]Executor
	byCategory map[catalog.Category]Executor
	fallback   Executor
}

// NewRegistry creates an empty registry. A nil fallback means unresolved
// nodes fail with ErrNoExecutor.
func NewRegistry(fallback Executor) *Registry {
	return &Registry{
		byType:     make(map[string]Executor),
		byCategory: make(map[catalog.Category]Executor),
		fallback:   fallback,
	}
}

// RegisterType binds an executor to a node type.
func (r *Registry) RegisterType(nodeType string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[nodeType] = e
}

// RegisterCategory binds an executor to every node of a category that has
// no type-specific executor.
func (r *Registry) RegisterCategory(category catalog.Category, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCategory[category] = e
}

// SetFallback replaces the fallback executor.
func (r *Registry) SetFallback(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = e
}

// Resolve returns the executor for a node.
func (r *Registry) Resolve(node workflow.Node) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.byType[node.Type]; ok {
		return e, nil
	}
	if e, ok := r.byCategory[node.Category]; ok {
		return e, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNoExecutor, node.Category, node.Type)
}

// Execute resolves the executor of node and runs it. Registry itself
// satisfies Executor.
func (r *Registry) Execute(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	e, err := r.Resolve(node)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, node, input)
}
