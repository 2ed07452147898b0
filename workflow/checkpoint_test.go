package workflow

import (
	"context"
	"testing"
)

type approvalRequest struct {
	PlanID string `json:"plan_id"`
	Reason string `json:"reason"`
}

func TestCoercePayloadFromMap(t *testing.T) {
	restored := map[string]any{"plan_id": "plan-1", "reason": "budget"}

	var req approvalRequest
	if err := coercePayload(restored, &req); err != nil {
		t.Fatalf("coercePayload: %v", err)
	}
	if req.PlanID != "plan-1" || req.Reason != "budget" {
		t.Fatalf("req = %+v, want {plan-1 budget}", req)
	}
}

func TestMemoryCheckpointStorageRoundTrip(t *testing.T) {
	storage := NewMemoryCheckpointStorage()
	ctx := context.Background()

	cp := Checkpoint{RunID: "run-1", GraphHash: "abc"}
	if err := storage.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := storage.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.GraphHash != "abc" {
		t.Fatalf("GraphHash = %q, want abc", got.GraphHash)
	}

	if err := storage.Delete(ctx, "run-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := storage.Load(ctx, "run-1"); err == nil {
		t.Fatal("expected error loading deleted checkpoint")
	}
}
