package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// DefaultRedisPrefix namespaces every key written by RedisRepository.
const DefaultRedisPrefix = "autoflow"

// RedisRepository stores the workflow library in Redis:
//
//	<prefix>:saved                 hash of workflow id -> index entry JSON
//	<prefix>:workflow:<id>         snapshot JSON
//	<prefix>:runs:<workflow id>    sorted set of run ids by start time
//	<prefix>:run:<run id>          run JSON including its log
//
// Index entry and snapshot are written in one MULTI/EXEC transaction.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) savedKey() string { return r.prefix + ":saved" }

func (r *RedisRepository) workflowKey(id types.WorkflowID) string {
	return r.prefix + ":workflow:" + id.String()
}

func (r *RedisRepository) runsKey(id types.WorkflowID) string { return r.prefix + ":runs:" + id.String() }

func (r *RedisRepository) runKey(id types.RunID) string { return r.prefix + ":run:" + id.String() }

// ListSaved returns the index, most recently updated first.
func (r *RedisRepository) ListSaved(ctx context.Context) ([]workflow.SavedWorkflow, error) {
	raw, err := r.client.HGetAll(ctx, r.savedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	out := make([]workflow.SavedWorkflow, 0, len(raw))
	for id, data := range raw {
		var entry workflow.SavedWorkflow
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to parse index entry %s: %w", id, err)
		}
		out = append(out, entry)
	}
	workflow.SortByUpdated(out)
	return out, nil
}

// LoadFull reads the snapshot of id.
func (r *RedisRepository) LoadFull(ctx context.Context, id types.WorkflowID) (*workflow.Workflow, error) {
	entry, err := r.entry(ctx, r.client, id)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.workflowKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var wf workflow.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return withIndex(&wf, entry), nil
}

// SaveFull writes the index entry and snapshot of wf atomically.
func (r *RedisRepository) SaveFull(ctx context.Context, wf *workflow.Workflow) (workflow.SavedWorkflow, error) {
	if wf == nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("cannot save nil workflow")
	}
	snap := wf.Clone()
	snap.PrepareSave(time.Now().UTC())
	entry := snap.Summary()

	data, err := json.Marshal(snap)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to marshal index entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.savedKey(), entry.ID.String(), entryData)
		pipe.Set(ctx, r.workflowKey(entry.ID), data, 0)
		return nil
	})
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to save workflow: %w", err)
	}
	return entry, nil
}

// DeleteSaved removes the index entry, the snapshot and the runs of id.
func (r *RedisRepository) DeleteSaved(ctx context.Context, id types.WorkflowID) error {
	exists, err := r.client.HExists(ctx, r.savedKey(), id.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}

	runIDs, err := r.client.ZRange(ctx, r.runsKey(id), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.savedKey(), id.String())
		keys := []string{r.workflowKey(id), r.runsKey(id)}
		for _, runID := range runIDs {
			keys = append(keys, r.runKey(types.RunID(runID)))
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

// RecordRun applies run bookkeeping to the index entry of id. The update is
// retried when the index changes concurrently.
func (r *RedisRepository) RecordRun(ctx context.Context, id types.WorkflowID, at time.Time) error {
	const maxRetries = 5

	update := func(tx *redis.Tx) error {
		entry, err := r.entry(ctx, tx, id)
		if err != nil {
			return err
		}
		entry.RecordRun(at)
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal index entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.savedKey(), id.String(), data)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := r.client.Watch(ctx, update, r.savedKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, workflow.ErrWorkflowNotFound) {
			return fmt.Errorf("failed to record run: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to record run: index changed %d times", maxRetries)
}

// AppendRun stores run and adds it to the run list of its workflow.
func (r *RedisRepository) AppendRun(ctx context.Context, run *execution.Run) error {
	if run == nil {
		return fmt.Errorf("cannot append nil run")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.runKey(run.ID), data, 0)
		pipe.ZAdd(ctx, r.runsKey(run.WorkflowID), redis.Z{
			Score:  float64(run.StartedAt.UnixMilli()),
			Member: run.ID.String(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append run: %w", err)
	}
	return nil
}

// ListRuns returns the runs of a workflow, most recent first.
func (r *RedisRepository) ListRuns(ctx context.Context, workflowID types.WorkflowID, limit int) ([]*execution.Run, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, r.runsKey(workflowID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*execution.Run, 0, len(ids))
	for _, id := range ids {
		run, err := r.LoadRun(ctx, types.RunID(id))
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LoadRun returns one run including its log.
func (r *RedisRepository) LoadRun(ctx context.Context, id types.RunID) (*execution.Run, error) {
	data, err := r.client.Get(ctx, r.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", execution.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	var run execution.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// hashReader is satisfied by the client and by a watching transaction.
type hashReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func (r *RedisRepository) entry(ctx context.Context, c hashReader, id types.WorkflowID) (workflow.SavedWorkflow, error) {
	data, err := c.HGet(ctx, r.savedKey(), id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return workflow.SavedWorkflow{}, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to read index entry: %w", err)
	}

	var entry workflow.SavedWorkflow
	if err := json.Unmarshal(data, &entry); err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to parse index entry: %w", err)
	}
	return entry, nil
}
