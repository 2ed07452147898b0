package orchestration

import (
	"sync"

	"github.com/agentflow/kernel/workflow"
)

// TaskLedgerEntry is one fact, plan step, or assumption the Magentic
// planner recorded while decomposing the overall task.
type TaskLedgerEntry struct {
	Kind string // "fact", "plan_step", "assumption"
	Text string
}

// ProgressLedgerEntry records one iteration of the Magentic inner loop:
// what was attempted, whether it made progress, and whether a stall was
// detected. Stalled is recorded as step reports it; the orchestrator does
// not act on it and does not re-plan on stalls.
type ProgressLedgerEntry struct {
	Iteration int
	Action    string
	Progress  bool
	Stalled   bool
}

// MagenticPlan is produced by the planner executor. Unless the planner
// marks it Approved itself, the orchestrator suspends the run for human
// approval (via Context.RequestExternalInput) before any worker runs.
type MagenticPlan struct {
	Task     string
	Ledger   []TaskLedgerEntry
	Approved bool
}

// orchestratorState accumulates the task ledger and progress ledger across
// the Magentic loop's iterations.
type orchestratorState struct {
	mu       sync.Mutex
	task     []TaskLedgerEntry
	progress []ProgressLedgerEntry
}

// Planner turns a raw task string into a MagenticPlan by calling plan. The
// resulting executor's output always feeds the orchestrator directly; the
// orchestrator itself decides whether the plan needs review before running.
func Planner(id string, plan func(task string) MagenticPlan) workflow.Executor {
	return workflow.FuncExecutor(id, func(wctx *workflow.Context, task string) error {
		return wctx.SendMessage(plan(task))
	})
}

// orchestratorExecutor drives the Magentic inner loop: given an approved
// MagenticPlan, it repeatedly assigns work to workers (via step), recording
// progress-ledger entries, until step reports the task is complete or
// maxIterations is reached.
type orchestratorExecutor struct {
	*workflow.BaseExecutor
	state     *orchestratorState
	step      func(plan MagenticPlan, progress []ProgressLedgerEntry) (ProgressLedgerEntry, bool, any)
	max       int
	plannerID string
}

// Orchestrator builds the executor that runs the Magentic inner loop.
// step is called once per iteration with the approved plan and the ledger
// accumulated so far; it returns this iteration's ledger entry, whether
// the task is complete, and (when complete) the final output. plannerID
// names the executor a rejected plan is sent back to for re-planning.
func Orchestrator(id string, maxIterations int, plannerID string, step func(plan MagenticPlan, progress []ProgressLedgerEntry) (ProgressLedgerEntry, bool, any)) workflow.Executor {
	o := &orchestratorExecutor{
		BaseExecutor: workflow.NewBaseExecutor(id),
		state:        &orchestratorState{},
		step:         step,
		max:          maxIterations,
		plannerID:    plannerID,
	}
	workflow.RegisterHandler(o.BaseExecutor, o.handlePlan)
	workflow.RegisterHandler(o.BaseExecutor, o.handleApproval)
	return o
}

func (o *orchestratorExecutor) handlePlan(wctx *workflow.Context, plan MagenticPlan) error {
	if plan.Approved {
		return o.runLoop(wctx, plan)
	}
	_, err := wctx.RequestExternalInput(plan)
	return err
}

func (o *orchestratorExecutor) handleApproval(wctx *workflow.Context, resp workflow.ExternalResponse) error {
	plan, _ := resp.OriginalRequest.(MagenticPlan)
	approved, _ := resp.Data.(bool)
	if !approved {
		wctx.Emit(workflow.EventOrchestrationReset, map[string]any{"task": plan.Task})
		return wctx.SendMessage(plan.Task, o.plannerID)
	}
	plan.Approved = approved
	return o.runLoop(wctx, plan)
}

func (o *orchestratorExecutor) runLoop(wctx *workflow.Context, plan MagenticPlan) error {
	max := o.max
	if max <= 0 {
		max = 20
	}
	for i := 1; i <= max; i++ {
		o.state.mu.Lock()
		progress := append([]ProgressLedgerEntry(nil), o.state.progress...)
		o.state.mu.Unlock()

		entry, done, output := o.step(plan, progress)
		entry.Iteration = i

		o.state.mu.Lock()
		o.state.progress = append(o.state.progress, entry)
		o.state.mu.Unlock()

		if done {
			return wctx.YieldOutput(output)
		}
	}
	return wctx.YieldOutput("magentic loop exceeded max iterations without completion")
}

// Magentic builds a planner -> orchestrator workflow. A plan the planner
// marks unapproved is routed through RequestExternalInput for review before
// any worker runs; if the reviewer rejects it, the orchestrator emits an
// EventOrchestrationReset and sends the original task back to the planner
// for another pass rather than failing the run.
func Magentic(
	name string,
	plan func(task string) MagenticPlan,
	step func(plan MagenticPlan, progress []ProgressLedgerEntry) (ProgressLedgerEntry, bool, any),
	maxIterations int,
) (*workflow.Workflow, error) {
	planner := Planner("planner", plan)
	orchestrator := Orchestrator("orchestrator", maxIterations, planner.ID(), step)

	return workflow.NewBuilder(name).
		AddExecutor(planner).
		AddExecutor(orchestrator).
		AddEdge(workflow.NewDirectEdge(planner.ID(), orchestrator.ID())).
		// the orchestrator answers its own plan-review request, so its
		// external-input response must route back to itself.
		AddEdge(workflow.NewDirectEdge(orchestrator.ID(), orchestrator.ID())).
		Build()
}
