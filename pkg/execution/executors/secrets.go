package executors

import (
	"context"
	"fmt"

	"github.com/dshills/autoflow/pkg/credential"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// WithSecrets returns an executor that replaces secret:// configuration
// values with the stored secrets before calling next. The node held by the
// workflow keeps its references.
func WithSecrets(store credential.Store, next Executor) Executor {
	return ExecutorFunc(func(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
		cfg, err := credential.Resolve(store, node.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credentials: %w", err)
		}
		node.Configuration = cfg
		return next.Execute(ctx, node, input)
	})
}
