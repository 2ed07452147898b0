package orchestration

import (
	"context"
	"strings"
	"testing"

	"github.com/agentflow/kernel/workflow"
)

func TestHandoffRoutesByContent(t *testing.T) {
	triage := workflow.FuncExecutor("triage", func(wctx *workflow.Context, ticket string) error {
		return wctx.SendMessage(ticket)
	})
	billing := workflow.FuncExecutor("billing", func(wctx *workflow.Context, ticket string) error {
		return wctx.YieldOutput("billing:" + ticket)
	})
	engineering := workflow.FuncExecutor("engineering", func(wctx *workflow.Context, ticket string) error {
		return wctx.YieldOutput("engineering:" + ticket)
	})

	wf, err := Handoff("triage-desk", []workflow.Executor{triage, billing, engineering}, []HandoffRoute{
		{From: "triage", To: "billing", When: func(m *workflow.Message) bool {
			s, _ := m.Data.(string)
			return strings.Contains(s, "invoice")
		}},
		{From: "triage", To: "engineering", When: func(m *workflow.Message) bool {
			s, _ := m.Data.(string)
			return !strings.Contains(s, "invoice")
		}},
	})
	if err != nil {
		t.Fatalf("Handoff: %v", err)
	}

	runner, err := workflow.NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	result, err := runner.Run(context.Background(), "invoice #44 is wrong")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Outputs) != 1 || result.Outputs[0] != "billing:invoice #44 is wrong" {
		t.Fatalf("outputs = %v", result.Outputs)
	}
}
