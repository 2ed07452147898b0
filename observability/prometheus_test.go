package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusObserverCountsEvents(t *testing.T) {
	o := NewPrometheusObserver(DefaultPrometheusConfig())
	o.OnEvent(context.Background(), Event{
		Type: "ExecutorCompleted", Level: LevelVerbose, Timestamp: time.Now(),
		Source: "upper", Data: map[string]any{"duration_seconds": 0.01},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	o.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "agentflow_workflow_events_total") {
		t.Fatalf("expected events_total metric in output, got: %s", body)
	}
	if !strings.Contains(body, "agentflow_workflow_executor_duration_seconds") {
		t.Fatalf("expected duration histogram in output, got: %s", body)
	}
}
