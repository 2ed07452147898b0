package orchestration

import (
	"context"
	"strings"
	"testing"

	"github.com/agentflow/kernel/workflow"
)

func TestSequentialPipeline(t *testing.T) {
	upper := workflow.FuncExecutor("upper", func(wctx *workflow.Context, s string) error {
		return wctx.SendMessage(strings.ToUpper(s))
	})
	exclaim := workflow.FuncExecutor("exclaim", func(wctx *workflow.Context, s string) error {
		return wctx.YieldOutput(s + "!")
	})

	wf, err := Sequential("greeting", upper, exclaim)
	if err != nil {
		t.Fatalf("Sequential: %v", err)
	}

	runner, err := workflow.NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != "HI!" {
		t.Fatalf("outputs = %v, want [HI!]", result.Outputs)
	}
}
