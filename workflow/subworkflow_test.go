package workflow

import (
	"context"
	"strings"
	"testing"
)

func TestSubWorkflowEcho(t *testing.T) {
	child, err := NewBuilder("child").
		AddExecutor(FuncExecutor("echo", func(wctx *Context, s string) error {
			return wctx.YieldOutput(strings.ToUpper(s))
		})).
		Build()
	if err != nil {
		t.Fatalf("Build child: %v", err)
	}

	sub := NewWorkflowExecutor("child-wf", child)
	collect := FuncExecutor("collect", func(wctx *Context, s string) error {
		return wctx.YieldOutput(s)
	})

	parent, err := NewBuilder("parent").
		AddExecutor(sub).
		AddExecutor(collect).
		AddEdge(NewDirectEdge("child-wf", "collect")).
		Build()
	if err != nil {
		t.Fatalf("Build parent: %v", err)
	}

	runner, err := NewRunner(parent)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != "ECHO" {
		t.Fatalf("outputs = %v, want [ECHO]", result.Outputs)
	}
}

func TestSubWorkflowPropagatesPendingRequest(t *testing.T) {
	approve := NewRequestInfoExecutor("approve")
	finish := FuncExecutor("finish", func(wctx *Context, resp ExternalResponse) error {
		return wctx.YieldOutput(resp.Data)
	})

	child, err := NewBuilder("child").
		AddExecutor(approve).
		AddExecutor(finish).
		AddEdge(NewDirectEdge("approve", "finish")).
		Build()
	if err != nil {
		t.Fatalf("Build child: %v", err)
	}

	sub := NewWorkflowExecutor("child-wf", child)
	collect := FuncExecutor("collect", func(wctx *Context, s string) error {
		return wctx.YieldOutput(s)
	})
	isExternalResponse := func(m *Message) bool {
		_, ok := m.Data.(ExternalResponse)
		return ok
	}

	parent, err := NewBuilder("parent").
		AddExecutor(sub).
		AddExecutor(collect).
		AddEdge(NewDirectEdge("child-wf", "collect")).
		// a propagated child request answers itself, same as an
		// orchestrator's own plan-review response in the magentic pattern.
		AddEdge(NewConditionalEdge("child-wf", "child-wf", isExternalResponse)).
		Build()
	if err != nil {
		t.Fatalf("Build parent: %v", err)
	}

	runner, err := NewRunner(parent)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "please approve")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != RunInProgressPaused || len(result.PendingRequests) != 1 {
		t.Fatalf("result = %+v, want the parent run paused on the child's request", result)
	}

	var parentReqID string
	for id := range result.PendingRequests {
		parentReqID = id
	}

	result, err = runner.Respond(context.Background(), parentReqID, "approved")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.State != RunCompleted || len(result.Outputs) != 1 || result.Outputs[0] != "approved" {
		t.Fatalf("result = %+v, want completed with [approved]", result)
	}
}
