package workflow

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/agentflow/kernel/observability"
)

// Context is passed to every handler invocation. It lets a handler emit
// further messages to downstream executors, yield a terminal workflow
// output, or raise an external-input request, without the executor needing
// a reference to the Runner or the Workflow itself.
type Context struct {
	ctx        context.Context
	executorID string
	traceID    string
	runner     *Runner
}

func (c *Context) Context() context.Context { return c.ctx }
func (c *Context) ExecutorID() string       { return c.executorID }

// TraceID returns the id correlating this invocation back to its run
// (stamped onto every Message derived from the run's seed input). Callers
// that maintain their own per-run state keyed outside the Runner (e.g. the
// declarative loader's ambient variable scope) use this to partition it.
func (c *Context) TraceID() string { return c.traceID }

// SendMessage emits data as a new Message from this executor, to be routed
// by any outgoing edge that can handle it. targetID, if non-empty, pins
// delivery to one specific downstream executor rather than letting edges
// decide (mirrors send_message(msg, target_id=...) in the system this
// package's API was modeled on).
func (c *Context) SendMessage(data any, targetID ...string) error {
	msg := NewMessage(c.executorID, data).WithTrace(c.traceID)
	var target string
	if len(targetID) > 0 {
		target = targetID[0]
	}
	return c.runner.enqueue(c.ctx, msg, target)
}

// YieldOutput marks data as a terminal output of the workflow run. Multiple
// executors may yield outputs in the same run; all are collected.
func (c *Context) YieldOutput(data any) error {
	return c.runner.yieldOutput(c.ctx, c.executorID, data)
}

// RequestExternalInput suspends the run pending an external response
// correlated by the returned request id. See RequestInfoExecutor.
func (c *Context) RequestExternalInput(prompt any) (string, error) {
	return c.runner.requestExternalInput(c.ctx, c.executorID, prompt)
}

// Emit publishes a domain-specific event onto the run's observability
// stream, attributed to this executor. For orchestration patterns (e.g. a
// Magentic reset) that need to surface a state transition which isn't a
// message send, a yield, or a request, without inventing a parallel event
// channel.
func (c *Context) Emit(eventType observability.EventType, data map[string]any) {
	c.runner.emit(c.ctx, c.executorID, eventType, data)
}

// Executor is a node in a Workflow graph. Implementations register typed
// handlers via RegisterHandler rather than implementing a single dispatch
// method, so a handler's input type is checked at registration time instead
// of by a type switch at dispatch time.
type Executor interface {
	ID() string

	// Handle dispatches msg to the handler registered for its concrete
	// type. Returns an *ErrUnhandledType if no handler matches; by default
	// the Runner treats that as a warning and drops the message rather
	// than failing the run (see RunnerConfig.StrictMessageTypes).
	Handle(wctx *Context, msg *Message) error
}

// ErrUnhandledType is returned when an executor has no handler registered
// for a message's concrete type. The Runner drops it with a warning event
// unless RunnerConfig.StrictMessageTypes is set, in which case it is fatal.
type ErrUnhandledType struct {
	ExecutorID string
	Type       reflect.Type
}

func (e *ErrUnhandledType) Error() string {
	return fmt.Sprintf("executor %s has no handler for type %s", e.ExecutorID, e.Type)
}

// HandlerFunc processes one message of type T for an executor.
type HandlerFunc[T any] func(wctx *Context, data T) error

// BaseExecutor is an embeddable Executor implementation providing
// type-dispatched handler registration. Concrete executors embed
// *BaseExecutor and call RegisterHandler in their constructor.
type BaseExecutor struct {
	id       string
	handlers map[reflect.Type]func(wctx *Context, msg *Message) error
}

// NewBaseExecutor constructs a BaseExecutor with the given id. id must be
// unique within a Workflow.
func NewBaseExecutor(id string) *BaseExecutor {
	return &BaseExecutor{
		id:       id,
		handlers: make(map[reflect.Type]func(wctx *Context, msg *Message) error),
	}
}

func (b *BaseExecutor) ID() string { return b.id }

// HandledTypes returns the concrete types this executor has registered
// handlers for, sorted by name for stable hashing. Used by
// computeGraphHash to fold handler signatures into the structural hash
// (changing a handler's input type must change the hash).
func (b *BaseExecutor) HandledTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

// RegisterHandler registers fn to handle messages whose Data has type T.
func RegisterHandler[T any](b *BaseExecutor, fn HandlerFunc[T]) {
	var zero T
	t := reflect.TypeOf(zero)
	b.handlers[t] = func(wctx *Context, msg *Message) error {
		data, ok := msg.Data.(T)
		if !ok {
			return &ErrUnhandledType{ExecutorID: b.id, Type: reflect.TypeOf(msg.Data)}
		}
		return fn(wctx, data)
	}
}

func (b *BaseExecutor) Handle(wctx *Context, msg *Message) error {
	t := reflect.TypeOf(msg.Data)
	fn, ok := b.handlers[t]
	if !ok {
		return &ErrUnhandledType{ExecutorID: b.id, Type: t}
	}
	return fn(wctx, msg)
}

// FuncExecutor adapts a single function into an Executor, for the common
// case of a stateless transform with one handled type.
func FuncExecutor[T any](id string, fn HandlerFunc[T]) Executor {
	b := NewBaseExecutor(id)
	RegisterHandler(b, fn)
	return b
}
