package checkpointstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentflow/kernel/workflow"
)

// File implements workflow.CheckpointStorage as one JSON file per run under
// Dir, named <run-id>.json with path separators in the run id escaped.
type File struct {
	Dir string
}

// NewFile returns a checkpoint store rooted at dir. The directory is
// created lazily on first Save.
func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) path(runID string) string {
	safe := strings.ReplaceAll(runID, string(filepath.Separator), "_")
	return filepath.Join(f.Dir, safe+".json")
}

func (f *File) Save(_ context.Context, cp workflow.Checkpoint) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("checkpointstore: create dir %s: %w", f.Dir, err)
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpointstore: marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(f.path(cp.RunID), data, 0o644); err != nil {
		return fmt.Errorf("checkpointstore: write checkpoint: %w", err)
	}
	return nil
}

func (f *File) Load(_ context.Context, runID string) (workflow.Checkpoint, error) {
	data, err := os.ReadFile(f.path(runID))
	if err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("checkpointstore: load checkpoint %q: %w", runID, err)
	}
	var cp workflow.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("checkpointstore: unmarshal checkpoint %q: %w", runID, err)
	}
	return cp, nil
}

func (f *File) Delete(_ context.Context, runID string) error {
	if err := os.Remove(f.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpointstore: delete checkpoint %q: %w", runID, err)
	}
	return nil
}

func (f *File) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpointstore: list dir %s: %w", f.Dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}
