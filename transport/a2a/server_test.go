package a2a

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentflow/kernel/workflow"
)

func echoWorkflow(t *testing.T) func() (*workflow.Runner, error) {
	return func() (*workflow.Runner, error) {
		exec := workflow.FuncExecutor("echo", func(wctx *workflow.Context, data string) error {
			return wctx.YieldOutput("echo: " + data)
		})
		b := workflow.NewBuilder("echo-workflow").AddExecutor(exec).SetStart("echo")
		wf, err := b.Build()
		if err != nil {
			t.Fatalf("build workflow: %v", err)
		}
		return workflow.NewRunner(wf)
	}
}

func TestA2ATaskLifecycle(t *testing.T) {
	srv := NewServer("http://localhost:8090")
	srv.RegisterWorkflow("echo", "Echo Agent", "echoes its input", echoWorkflow(t))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Agent directory.
	resp, err := http.Get(ts.URL + "/agents")
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	var dir AgentDirectory
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		t.Fatalf("decode directory: %v", err)
	}
	resp.Body.Close()
	if dir.Total != 1 || dir.Agents[0].AgentID != "echo" {
		t.Fatalf("directory = %+v", dir)
	}

	// Create a task.
	body := `{"input":"hello"}`
	resp, err = http.Post(ts.URL+"/agents/echo/tasks", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	var created TaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || created.TaskID == "" {
		t.Fatalf("create task status=%d resp=%+v", resp.StatusCode, created)
	}

	// Poll until done.
	var final TaskResponse
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/agents/echo/tasks/" + created.TaskID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		json.NewDecoder(resp.Body).Decode(&final)
		resp.Body.Close()
		if final.Status != TaskStatusRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if final.Status != TaskStatusCompleted {
		t.Fatalf("final status = %+v", final)
	}
	if len(final.Outputs) != 1 || final.Outputs[0] != "echo: hello" {
		t.Fatalf("outputs = %v", final.Outputs)
	}
}

func TestA2AUnknownAgent(t *testing.T) {
	srv := NewServer("http://localhost:8090")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/agents/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
