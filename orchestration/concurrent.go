package orchestration

import (
	"fmt"

	"github.com/agentflow/kernel/workflow"
)

// Concurrent fans a dispatcher's message out to every worker, then fans
// their results back in to a single aggregator. Workers run concurrently,
// bounded by the Runner's MaxConcurrency.
func Concurrent(name string, dispatcher workflow.Executor, workers []workflow.Executor, aggregator workflow.Executor) (*workflow.Workflow, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("orchestration.Concurrent: at least one worker required")
	}

	workerIDs := make([]string, len(workers))
	for i, w := range workers {
		workerIDs[i] = w.ID()
	}

	b := workflow.NewBuilder(name).
		AddExecutor(dispatcher).
		AddExecutor(aggregator)
	for _, w := range workers {
		b.AddExecutor(w)
	}

	b.AddEdge(workflow.NewFanOutEdge(dispatcher.ID(), workerIDs...))
	b.AddEdge(workflow.NewFanInEdge(aggregator.ID(), workerIDs...))

	return b.Build()
}
