// Package checkpointstore collects workflow.CheckpointStorage backends: an
// in-process map, a JSON-on-disk store, and database-backed adapters in
// their own subpackages (redis, sqlite, postgres) so their drivers are only
// imported when actually used.
package checkpointstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentflow/kernel/workflow"
)

// Memory implements workflow.CheckpointStorage with an in-process map.
// Checkpoints are lost on process exit; suitable for tests and
// single-process development, not crash recovery.
type Memory struct {
	mu          sync.RWMutex
	checkpoints map[string]workflow.Checkpoint
}

// NewMemory returns an empty in-process checkpoint store.
func NewMemory() *Memory {
	return &Memory{checkpoints: make(map[string]workflow.Checkpoint)}
}

func (m *Memory) Save(_ context.Context, cp workflow.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.RunID] = cp
	return nil
}

func (m *Memory) Load(_ context.Context, runID string) (workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[runID]
	if !ok {
		return workflow.Checkpoint{}, fmt.Errorf("checkpointstore: no checkpoint for run %q", runID)
	}
	return cp, nil
}

func (m *Memory) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, runID)
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.checkpoints))
	for id := range m.checkpoints {
		ids = append(ids, id)
	}
	return ids, nil
}
