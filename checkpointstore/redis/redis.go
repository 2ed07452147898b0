// Package redis implements workflow.CheckpointStorage on top of
// github.com/redis/go-redis/v9, storing each run's checkpoint as a JSON
// blob under a configurable key prefix.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/agentflow/kernel/workflow"
)

// Store persists checkpoints in Redis, one string key per run.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an already-configured Redis client. prefix defaults to
// "agentflow:checkpoint:" when empty.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "agentflow:checkpoint:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(runID string) string { return s.prefix + runID }

func (s *Store) Save(ctx context.Context, cp workflow.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("redis checkpointstore: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(cp.RunID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis checkpointstore: set %s: %w", cp.RunID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (workflow.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return workflow.Checkpoint{}, fmt.Errorf("redis checkpointstore: no checkpoint for run %q", runID)
		}
		return workflow.Checkpoint{}, fmt.Errorf("redis checkpointstore: get %s: %w", runID, err)
	}
	var cp workflow.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("redis checkpointstore: unmarshal %s: %w", runID, err)
	}
	return cp, nil
}

func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.key(runID)).Err(); err != nil {
		return fmt.Errorf("redis checkpointstore: del %s: %w", runID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("redis checkpointstore: keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, s.prefix))
	}
	return ids, nil
}
