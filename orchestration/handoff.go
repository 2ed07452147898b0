package orchestration

import "github.com/agentflow/kernel/workflow"

// HandoffRoute is one conditional transition in a Handoff topology: when
// From's output satisfies When, control passes to To. Routes from the same
// From executor are tried in slice order; the first match wins. A nil When
// always matches.
type HandoffRoute struct {
	From string
	To   string
	When workflow.Predicate
}

// Handoff builds a workflow where each executor's output routes to the
// next participant via a predicate over the message, rather than a fixed
// pipeline -- the shape used for escalation chains and specialist
// triage (e.g. a support agent handing a ticket to billing or engineering
// depending on its content).
func Handoff(name string, executors []workflow.Executor, routes []HandoffRoute) (*workflow.Workflow, error) {
	b := workflow.NewBuilder(name)
	for _, e := range executors {
		b.AddExecutor(e)
	}
	earlier := make(map[string][]workflow.Predicate)
	for _, r := range routes {
		when := r.When
		if when == nil {
			when = workflow.Always()
		}
		pred := when
		if prior := earlier[r.From]; len(prior) > 0 {
			pred = workflow.And(when, workflow.Not(workflow.Or(prior...)))
		}
		earlier[r.From] = append(earlier[r.From], when)
		b.AddEdge(workflow.NewConditionalEdge(r.From, r.To, pred))
	}
	return b.Build()
}
