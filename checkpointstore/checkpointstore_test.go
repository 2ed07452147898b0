package checkpointstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentflow/kernel/workflow"
)

func testCheckpoint(runID string) workflow.Checkpoint {
	return workflow.Checkpoint{
		RunID:        runID,
		WorkflowName: "wf",
		GraphHash:    "abc123",
		Superstep:    2,
		OutputsSoFar: []any{"partial"},
	}
}

func TestMemorySaveLoadDeleteList(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Save(ctx, testCheckpoint("run-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cp, err := store.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.GraphHash != "abc123" {
		t.Fatalf("GraphHash = %q", cp.GraphHash)
	}

	ids, err := store.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "run-1" {
		t.Fatalf("List = %v, %v", ids, err)
	}

	if err := store.Delete(ctx, "run-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "run-1"); err == nil {
		t.Fatal("expected error loading deleted checkpoint")
	}
}

func TestFileSaveLoadDeleteList(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "checkpoints"))
	ctx := context.Background()

	if err := store.Save(ctx, testCheckpoint("run/with/slashes")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cp, err := store.Load(ctx, "run/with/slashes")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.Superstep != 2 {
		t.Fatalf("Superstep = %d", cp.Superstep)
	}

	ids, err := store.List(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("List = %v, %v", ids, err)
	}

	if err := store.Delete(ctx, "run/with/slashes"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "run/with/slashes"); err == nil {
		t.Fatal("expected error loading deleted checkpoint")
	}
}
