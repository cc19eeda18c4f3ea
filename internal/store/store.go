package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/pkg/api"
)

// Store is the Redis catalog of workflow definitions and run results
type Store struct {
	client *redis.Client
	cfg    config.StoreConfig
}

const (
	workflowKey  = "workflow"
	workflowsKey = "workflows"
	runKey       = "run"
	runsKey      = "runs"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrRunNotFound      = errors.New("run not found")
	ErrNilResult        = errors.New("result is nil")
)

// New connects a store to the configured Redis endpoint
func New(cfg config.StoreConfig) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)
}

// NewWithClient wraps an existing Redis client
func NewWithClient(client *redis.Client, cfg config.StoreConfig) *Store {
	return &Store{
		client: client,
		cfg:    cfg,
	}
}

// Ping verifies that Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveWorkflow validates and stores a definition, replacing any definition
// with the same ID
func (s *Store) SaveWorkflow(
	ctx context.Context, def *api.WorkflowDefinition,
) error {
	if err := def.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(workflowKey, string(def.ID)), data, 0)
		p.SAdd(ctx, s.key(workflowsKey), string(def.ID))
		return nil
	})
	return err
}

// GetWorkflow loads a stored definition
func (s *Store) GetWorkflow(
	ctx context.Context, id api.WorkflowID,
) (*api.WorkflowDefinition, error) {
	data, err := s.client.Get(ctx, s.key(workflowKey, string(id))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var def api.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ListWorkflows returns every stored definition, ordered by ID
func (s *Store) ListWorkflows(
	ctx context.Context,
) ([]*api.WorkflowDefinition, error) {
	ids, err := s.client.SMembers(ctx, s.key(workflowsKey)).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)

	res := make([]*api.WorkflowDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := s.GetWorkflow(ctx, api.WorkflowID(id))
		if errors.Is(err, ErrWorkflowNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, def)
	}
	return res, nil
}

// DeleteWorkflow removes a definition. Recorded runs are left to expire
func (s *Store) DeleteWorkflow(ctx context.Context, id api.WorkflowID) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.key(workflowKey, string(id)))
		p.SRem(ctx, s.key(workflowsKey), string(id))
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return nil
}

// SaveRun records a run's result and adds it to the head of its workflow's
// run history, which is trimmed to the configured length
func (s *Store) SaveRun(ctx context.Context, res *api.WorkflowResult) error {
	if res == nil {
		return ErrNilResult
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	runs := s.key(runsKey, string(res.WorkflowID))
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(runKey, string(res.RunID)), data, s.cfg.RunTTL)
		p.LRem(ctx, runs, 0, string(res.RunID))
		p.LPush(ctx, runs, string(res.RunID))
		p.LTrim(ctx, runs, 0, int64(s.cfg.RunHistory)-1)
		return nil
	})
	return err
}

// GetRun loads a recorded result
func (s *Store) GetRun(
	ctx context.Context, id api.RunID,
) (*api.WorkflowResult, error) {
	data, err := s.client.Get(ctx, s.key(runKey, string(id))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var res api.WorkflowResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListRuns returns a workflow's recorded results, most recent first. Runs
// whose results have expired are omitted
func (s *Store) ListRuns(
	ctx context.Context, wfID api.WorkflowID,
) ([]*api.WorkflowResult, error) {
	ids, err := s.client.LRange(
		ctx, s.key(runsKey, string(wfID)), 0, -1,
	).Result()
	if err != nil {
		return nil, err
	}

	res := make([]*api.WorkflowResult, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, api.RunID(id))
		if errors.Is(err, ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, nil
}

func (s *Store) key(parts ...string) string {
	res := s.cfg.Prefix
	for _, p := range parts {
		if res == "" {
			res = p
			continue
		}
		res += ":" + p
	}
	return res
}
