package workflow

import (
	"fmt"
	"sync"
)

// WorkflowExecutor wraps a child Workflow so it can be embedded as a node
// in a parent Workflow's graph: a message addressed to it runs the child
// workflow and re-emits each of the child's yielded outputs as an ordinary
// message for the parent's next edge. The parent must still wire an
// outgoing edge from the wrapper -- sub-workflow output is a message like
// any other, not a special return channel.
//
// If the child suspends on an ExternalRequest, the wrapper propagates it
// upward as a request on the parent run (rather than blocking or dropping
// it): the parent's own RequestExternalInput raises an equivalent request,
// and the parent run's eventual response is routed back to resume the same
// child Runner instance, keyed off the parent's request id. Responses are
// delivered to the wrapper itself, so -- the same way Orchestrator answers
// its own plan-review request in the magentic pattern -- the parent graph
// must wire a self-loop edge on the wrapper's id conditioned on the message
// being an ExternalResponse, in addition to its normal outgoing edge, or a
// propagated request can never be resumed.
type WorkflowExecutor struct {
	id    string
	child *Workflow
	opts  []RunnerOption

	mu      sync.Mutex
	runner  *Runner
	pending map[string]string // parent request id -> child request id
}

// NewWorkflowExecutor wraps child under id. opts configure the child's
// Runner the same way they would configure a top-level run (e.g. a nested
// CheckpointStorage).
func NewWorkflowExecutor(id string, child *Workflow, opts ...RunnerOption) *WorkflowExecutor {
	return &WorkflowExecutor{id: id, child: child, opts: opts}
}

func (w *WorkflowExecutor) ID() string { return w.id }

func (w *WorkflowExecutor) Handle(wctx *Context, msg *Message) error {
	if resp, ok := msg.Data.(ExternalResponse); ok {
		return w.resume(wctx, resp)
	}
	return w.start(wctx, msg.Data)
}

func (w *WorkflowExecutor) start(wctx *Context, input any) error {
	runner, err := NewRunner(w.child, w.opts...)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.runner = runner
	w.mu.Unlock()

	result, err := runner.Run(wctx.Context(), input)
	if err != nil {
		return &HandlerError{ExecutorID: w.id, Err: err}
	}
	return w.deliver(wctx, result)
}

func (w *WorkflowExecutor) resume(wctx *Context, resp ExternalResponse) error {
	w.mu.Lock()
	runner := w.runner
	childReqID, ok := w.pending[resp.RequestID]
	if ok {
		delete(w.pending, resp.RequestID)
	}
	w.mu.Unlock()
	if runner == nil || !ok {
		return fmt.Errorf("workflow executor %s: no in-flight child request for %s", w.id, resp.RequestID)
	}

	result, err := runner.Respond(wctx.Context(), childReqID, resp.Data)
	if err != nil {
		return &HandlerError{ExecutorID: w.id, Err: err}
	}
	return w.deliver(wctx, result)
}

// deliver re-raises each of the child's still-pending requests as a request
// on the parent run and forwards each of the child's yielded outputs.
func (w *WorkflowExecutor) deliver(wctx *Context, result *RunResult) error {
	for childReqID, req := range result.PendingRequests {
		parentReqID, err := wctx.RequestExternalInput(req.Prompt)
		if err != nil {
			return err
		}
		w.mu.Lock()
		if w.pending == nil {
			w.pending = make(map[string]string)
		}
		w.pending[parentReqID] = childReqID
		w.mu.Unlock()
	}
	for _, out := range result.Outputs {
		if err := wctx.SendMessage(out); err != nil {
			return err
		}
	}
	return nil
}

// AsExecutor adapts an already-built Workflow into a plain Executor under
// id, for embedding a whole workflow as an agent-like node without
// constructing a WorkflowExecutor by hand.
func AsExecutor(w *Workflow, id string) Executor {
	return NewWorkflowExecutor(id, w)
}
