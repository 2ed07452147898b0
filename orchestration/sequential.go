// Package orchestration provides ready-made Workflow topologies for the
// recurring multi-agent shapes: a strict pipeline, a fan-out/fan-in, a
// conditional handoff chain, a manager-moderated group chat, and a
// Magentic planner/progress-ledger loop with a human plan-review gate.
//
// Each constructor returns a *workflow.Workflow built from
// workflow.Builder, so the result composes with everything else in that
// package (checkpointing, the declarative loader, sub-workflow embedding).
package orchestration

import (
	"fmt"

	"github.com/agentflow/kernel/workflow"
)

// Sequential chains executors in declaration order: each one's emitted
// message becomes the next one's input. The last executor is expected to
// call workflow.Context.YieldOutput itself.
func Sequential(name string, executors ...workflow.Executor) (*workflow.Workflow, error) {
	if len(executors) == 0 {
		return nil, fmt.Errorf("orchestration.Sequential: at least one executor required")
	}

	b := workflow.NewBuilder(name)
	for _, e := range executors {
		b.AddExecutor(e)
	}
	for i := 0; i < len(executors)-1; i++ {
		b.AddEdge(workflow.NewDirectEdge(executors[i].ID(), executors[i+1].ID()))
	}
	return b.Build()
}
