package workflow

import (
	"strings"
	"testing"
)

func noopExecutor(id string) Executor {
	return FuncExecutor(id, func(wctx *Context, s string) error {
		return wctx.YieldOutput(s)
	})
}

func TestBuildRejectsUnreachableExecutor(t *testing.T) {
	_, err := NewBuilder("disconnected").
		AddExecutor(noopExecutor("start")).
		AddExecutor(noopExecutor("orphan")).
		Build()
	if err == nil {
		t.Fatal("Build: want error for unreachable executor, got nil")
	}
	if !strings.Contains(err.Error(), "orphan") {
		t.Fatalf("Build error = %v, want it to name the unreachable executor", err)
	}
}

func TestBuildRejectsDuplicateFanInSource(t *testing.T) {
	_, err := NewBuilder("dup-source").
		AddExecutor(noopExecutor("a")).
		AddExecutor(noopExecutor("b")).
		AddEdge(NewDirectEdge("a", "b")).
		AddEdge(NewFanInEdge("b", "a", "a")).
		Build()
	if err == nil {
		t.Fatal("Build: want error for duplicate fan-in source, got nil")
	}
}

func TestBuildRejectsEmptyFanIn(t *testing.T) {
	_, err := NewBuilder("empty-fan-in").
		AddExecutor(noopExecutor("a")).
		AddEdge(NewFanInEdge("a")).
		Build()
	if err == nil {
		t.Fatal("Build: want error for fan-in edge with no sources, got nil")
	}
}

func TestBuildRejectsDuplicateEdge(t *testing.T) {
	_, err := NewBuilder("dup-edge").
		AddExecutor(noopExecutor("a")).
		AddExecutor(noopExecutor("b")).
		AddEdge(NewDirectEdge("a", "b")).
		AddEdge(NewDirectEdge("a", "b")).
		Build()
	if err == nil {
		t.Fatal("Build: want error for duplicate edge, got nil")
	}
}

func TestGraphHashChangesWithHandlerSignature(t *testing.T) {
	stringExec := FuncExecutor("node", func(wctx *Context, s string) error {
		return wctx.YieldOutput(s)
	})
	intExec := FuncExecutor("node", func(wctx *Context, n int) error {
		return wctx.YieldOutput(n)
	})

	wfString, err := NewBuilder("hash-a").AddExecutor(stringExec).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wfInt, err := NewBuilder("hash-a").AddExecutor(intExec).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if wfString.GraphHash() == wfInt.GraphHash() {
		t.Fatal("GraphHash: expected different hashes for different handler signatures")
	}
}
