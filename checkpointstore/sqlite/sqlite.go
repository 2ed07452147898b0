// Package sqlite implements workflow.CheckpointStorage on top of
// github.com/mattn/go-sqlite3, storing each run's checkpoint as a JSON blob
// in a single table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentflow/kernel/workflow"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id TEXT PRIMARY KEY,
	data   TEXT NOT NULL
);`

// Store persists checkpoints in a SQLite database at path.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite database at path and ensures its
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite checkpointstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite checkpointstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, cp workflow.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("sqlite checkpointstore: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, data) VALUES (?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET data = excluded.data`,
		cp.RunID, string(data))
	if err != nil {
		return fmt.Errorf("sqlite checkpointstore: upsert %s: %w", cp.RunID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (workflow.Checkpoint, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return workflow.Checkpoint{}, fmt.Errorf("sqlite checkpointstore: no checkpoint for run %q", runID)
	}
	if err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("sqlite checkpointstore: select %s: %w", runID, err)
	}
	var cp workflow.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("sqlite checkpointstore: unmarshal %s: %w", runID, err)
	}
	return cp, nil
}

func (s *Store) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("sqlite checkpointstore: delete %s: %w", runID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("sqlite checkpointstore: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite checkpointstore: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
