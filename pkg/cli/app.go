package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/autoflow/pkg/config"
	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	pkgexec "github.com/dshills/autoflow/pkg/execution"
	"github.com/dshills/autoflow/pkg/execution/executors"
	"github.com/dshills/autoflow/pkg/storage"
	"github.com/dshills/autoflow/pkg/workflow"
)

// openRepository creates the repository selected by cfg.Store.Type. The
// returned close function is nil for backends without resources.
func openRepository(ctx context.Context, cfg *config.Config) (workflow.Repository, func() error, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Store.Type {
	case config.StoreMemory:
		return storage.NewMemoryRepository(), nil, nil
	case config.StoreFile, "":
		repo, err := storage.NewFilesystemRepository(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	case config.StoreSQLite:
		repo, err := storage.NewSQLiteRepository(ctx, cfg.Store.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		return storage.NewRedisRepository(client, cfg.Store.Redis.Prefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// runHistory returns the repository as a RunHistory when it keeps one.
func (a *App) runHistory() (execution.RunHistory, error) {
	h, ok := a.Repo.(execution.RunHistory)
	if !ok {
		return nil, fmt.Errorf("store %q does not keep run history", a.Config.Store.Type)
	}
	return h, nil
}

// loadStore opens a saved workflow in a graph store.
func (a *App) loadStore(ctx context.Context, id string) (*workflow.Store, error) {
	wf, err := a.Repo.LoadFull(ctx, types.WorkflowID(id))
	if err != nil {
		return nil, err
	}
	return workflow.NewStore(a.Catalog, workflow.WithWorkflow(wf)), nil
}

// saveStore writes the store's graph back to the repository.
func (a *App) saveStore(ctx context.Context, store *workflow.Store) (workflow.SavedWorkflow, error) {
	saved, err := a.Repo.SaveFull(ctx, store.Snapshot())
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to save workflow: %w", err)
	}
	return saved, nil
}

// editWorkflow loads a workflow, applies fn and saves the result.
func (a *App) editWorkflow(ctx context.Context, id string, fn func(*workflow.Store) error) error {
	store, err := a.loadStore(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	_, err = a.saveStore(ctx, store)
	return err
}

// newExecutor builds the node executor configured for runs.
func (a *App) newExecutor() executors.Executor {
	cfg := a.Config.Execution
	mock := executors.NewMock()
	mock.MinDelay = cfg.MockMinDelay
	mock.MaxDelay = cfg.MockMaxDelay

	var ex executors.Executor = mock
	if cfg.Builtins {
		registry := executors.NewRegistry(mock)
		executors.RegisterBuiltins(registry)
		ex = registry
	}
	return executors.WithRetry(executors.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		NonRetryable: cfg.Retry.NonRetryable,
	}, ex)
}

// newEngine builds an engine over store from the configuration.
func (a *App) newEngine(store *workflow.Store) *pkgexec.Engine {
	opts := []pkgexec.Option{
		pkgexec.WithExecutor(a.newExecutor()),
		pkgexec.WithLogger(a.Logger),
		pkgexec.WithRepository(a.Repo),
		pkgexec.WithMaxNodeExecutions(a.Config.Execution.MaxNodeExecutions),
		pkgexec.WithNodeTimeout(a.Config.Execution.NodeTimeout),
	}
	if a.Config.Execution.Secrets {
		opts = append(opts, pkgexec.WithCredentials(a.Credentials))
	}
	return pkgexec.NewEngine(store, opts...)
}
