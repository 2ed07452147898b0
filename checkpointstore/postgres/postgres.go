// Package postgres implements workflow.CheckpointStorage on top of
// github.com/jackc/pgx/v5, for deployments that already run Postgres for
// other state and would rather not add a second storage system.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentflow/kernel/workflow"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id TEXT PRIMARY KEY,
	data   JSONB NOT NULL
);`

// Store persists checkpoints in a Postgres table via a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres via dsn and ensures the checkpoints table
// exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres checkpointstore: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres checkpointstore: create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) Save(ctx context.Context, cp workflow.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("postgres checkpointstore: marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO checkpoints (run_id, data) VALUES ($1, $2)
		 ON CONFLICT (run_id) DO UPDATE SET data = excluded.data`,
		cp.RunID, data)
	if err != nil {
		return fmt.Errorf("postgres checkpointstore: upsert %s: %w", cp.RunID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (workflow.Checkpoint, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM checkpoints WHERE run_id = $1`, runID).Scan(&data)
	if err == pgx.ErrNoRows {
		return workflow.Checkpoint{}, fmt.Errorf("postgres checkpointstore: no checkpoint for run %q", runID)
	}
	if err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("postgres checkpointstore: select %s: %w", runID, err)
	}
	var cp workflow.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("postgres checkpointstore: unmarshal %s: %w", runID, err)
	}
	return cp, nil
}

func (s *Store) Delete(ctx context.Context, runID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("postgres checkpointstore: delete %s: %w", runID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT run_id FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("postgres checkpointstore: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres checkpointstore: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
