package workflow

import (
	"context"
	"strings"
	"testing"
	"time"
)

func upperExecutor() Executor {
	return FuncExecutor("upper", func(wctx *Context, s string) error {
		return wctx.SendMessage(strings.ToUpper(s))
	})
}

func reverseExecutor() Executor {
	return FuncExecutor("reverse", func(wctx *Context, s string) error {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return wctx.YieldOutput(string(r))
	})
}

func TestSequentialUpperReverse(t *testing.T) {
	wf, err := NewBuilder("sequential").
		AddExecutor(upperExecutor()).
		AddExecutor(reverseExecutor()).
		AddEdge(NewDirectEdge("upper", "reverse")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	runner, err := NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != RunCompleted {
		t.Fatalf("state = %v, want RunCompleted", result.State)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != "OLLEH" {
		t.Fatalf("outputs = %v, want [OLLEH]", result.Outputs)
	}
}

// fanOutMixedHandlers builds a two-target fan-out where only one target
// can handle the broadcast string, exercising the unhandled-type path.
func fanOutMixedHandlers(t *testing.T) *Workflow {
	t.Helper()
	source := FuncExecutor("source", func(wctx *Context, s string) error {
		return wctx.SendMessage(s)
	})
	handles := FuncExecutor("handles", func(wctx *Context, s string) error {
		return wctx.YieldOutput(strings.ToUpper(s))
	})
	ignores := FuncExecutor("ignores", func(wctx *Context, n int) error {
		return wctx.YieldOutput(n)
	})

	wf, err := NewBuilder("fan-out-mixed").
		AddExecutor(source).
		AddExecutor(handles).
		AddExecutor(ignores).
		AddEdge(NewFanOutEdge("source", "handles", "ignores")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return wf
}

func TestUnhandledTypeWarnsAndDropsByDefault(t *testing.T) {
	runner, err := NewRunner(fanOutMixedHandlers(t))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != RunCompleted {
		t.Fatalf("state = %v, want RunCompleted", result.State)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != "HELLO" {
		t.Fatalf("outputs = %v, want [HELLO]", result.Outputs)
	}
}

func TestUnhandledTypeFailsRunInStrictMode(t *testing.T) {
	runner, err := NewRunner(fanOutMixedHandlers(t), WithStrictMessageTypes())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "hello")
	if err == nil {
		t.Fatalf("Run: want error in strict mode, got result %+v", result)
	}
}

func TestConcurrentFanOutFanIn(t *testing.T) {
	start := FuncExecutor("start", func(wctx *Context, topic string) error {
		return wctx.SendMessage(topic)
	})
	researcher := FuncExecutor("researcher", func(wctx *Context, topic string) error {
		return wctx.SendMessage("research:" + topic)
	})
	marketer := FuncExecutor("marketer", func(wctx *Context, topic string) error {
		return wctx.SendMessage("marketing:" + topic)
	})
	legal := FuncExecutor("legal", func(wctx *Context, topic string) error {
		return wctx.SendMessage("legal:" + topic)
	})
	aggregator := FuncExecutor("aggregator", func(wctx *Context, batch []any) error {
		return wctx.YieldOutput(batch)
	})

	wf, err := NewBuilder("concurrent").
		AddExecutor(start).
		AddExecutor(researcher).
		AddExecutor(marketer).
		AddExecutor(legal).
		AddExecutor(aggregator).
		AddEdge(NewFanOutEdge("start", "researcher", "marketer", "legal")).
		AddEdge(NewFanInEdge("aggregator", "researcher", "marketer", "legal")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	runner, err := NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("outputs = %v, want exactly 1 aggregated batch", result.Outputs)
	}
	batch, ok := result.Outputs[0].([]any)
	if !ok || len(batch) != 3 {
		t.Fatalf("batch = %v, want 3 elements", result.Outputs[0])
	}
}

func TestConditionalByAge(t *testing.T) {
	classify := FuncExecutor("classify", func(wctx *Context, age int) error {
		return wctx.SendMessage(age)
	})
	adult := FuncExecutor("adult", func(wctx *Context, age int) error {
		return wctx.YieldOutput("adult")
	})
	minor := FuncExecutor("minor", func(wctx *Context, age int) error {
		return wctx.YieldOutput("minor")
	})

	wf, err := NewBuilder("conditional").
		AddExecutor(classify).
		AddExecutor(adult).
		AddExecutor(minor).
		AddEdge(NewConditionalEdge("classify", "adult", func(m *Message) bool {
			age, _ := m.Data.(int)
			return age >= 18
		})).
		AddEdge(NewConditionalEdge("classify", "minor", func(m *Message) bool {
			age, _ := m.Data.(int)
			return age < 18
		})).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for age, want := range map[int]string{21: "adult", 10: "minor"} {
		runner, err := NewRunner(wf)
		if err != nil {
			t.Fatalf("NewRunner: %v", err)
		}
		result, err := runner.Run(context.Background(), age)
		if err != nil {
			t.Fatalf("Run(%d): %v", age, err)
		}
		if len(result.Outputs) != 1 || result.Outputs[0] != want {
			t.Fatalf("age %d: outputs = %v, want [%s]", age, result.Outputs, want)
		}
	}
}

func TestCheckpointResumeGraphMismatch(t *testing.T) {
	wf, err := NewBuilder("a").
		AddExecutor(upperExecutor()).
		AddExecutor(reverseExecutor()).
		AddEdge(NewDirectEdge("upper", "reverse")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	other, err := NewBuilder("b").
		AddExecutor(upperExecutor()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	cp := Checkpoint{RunID: "run-1", GraphHash: wf.GraphHash(), SavedAt: time.Now()}

	runner, err := NewRunner(other)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	_, err = runner.RunFromCheckpoint(context.Background(), cp)
	var mismatch *GraphMismatchError
	if err == nil {
		t.Fatal("expected GraphMismatchError, got nil")
	}
	if !asGraphMismatch(err, &mismatch) {
		t.Fatalf("expected GraphMismatchError, got %T: %v", err, err)
	}
}

func asGraphMismatch(err error, target **GraphMismatchError) bool {
	if gm, ok := err.(*GraphMismatchError); ok {
		*target = gm
		return true
	}
	return false
}

func TestRequestInfoPausesAndResumes(t *testing.T) {
	approve := NewRequestInfoExecutor("approve")
	finish := FuncExecutor("finish", func(wctx *Context, resp ExternalResponse) error {
		return wctx.YieldOutput(resp.Data)
	})

	wf, err := NewBuilder("hitl").
		AddExecutor(approve).
		AddExecutor(finish).
		AddEdge(NewDirectEdge("approve", "finish")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	runner, err := NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "please approve plan")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != RunInProgressPaused || len(result.PendingRequests) != 1 {
		t.Fatalf("result = %+v, want one pending request", result)
	}

	var requestID string
	for id := range result.PendingRequests {
		requestID = id
	}

	result, err = runner.Respond(context.Background(), requestID, "approved")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.State != RunCompleted || len(result.Outputs) != 1 || result.Outputs[0] != "approved" {
		t.Fatalf("result = %+v, want completed with [approved]", result)
	}
}
