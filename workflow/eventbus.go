package workflow

import (
	"context"
	"sync"

	"github.com/agentflow/kernel/observability"
)

// criticalEventTypes are delivered with blocking semantics on the streaming
// channel: a slow consumer stalls the run rather than silently losing a
// status transition, output, or HITL request.
var criticalEventTypes = map[observability.EventType]bool{
	EventWorkflowStatus:       true,
	EventWorkflowOutput:       true,
	EventWorkflowCompleted:    true,
	EventWorkflowFailed:       true,
	EventRequestInfoRaised:    true,
	EventRequestInfoResponded: true,
}

// eventBus fans every event out to a synchronous observability.Observer
// (for logging/tracing/metrics) and to a bounded streaming channel (for a
// caller consuming Runner.Events). Chatty per-superstep events
// (executor/edge telemetry) are dropped-oldest under backpressure; the
// handful of critical lifecycle events block instead of dropping.
type eventBus struct {
	observer observability.Observer

	mu      sync.Mutex
	streams []chan observability.Event
}

func newEventBus(observer observability.Observer) *eventBus {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &eventBus{observer: observer}
}

const streamBufferSize = 256

// Subscribe returns a channel receiving every event published after this
// call. Callers must continue to drain it until the run ends; Close is
// called automatically when the owning Runner finishes.
func (b *eventBus) Subscribe() <-chan observability.Event {
	ch := make(chan observability.Event, streamBufferSize)
	b.mu.Lock()
	b.streams = append(b.streams, ch)
	b.mu.Unlock()
	return ch
}

func (b *eventBus) Publish(ctx context.Context, event observability.Event) {
	b.observer.OnEvent(ctx, event)

	b.mu.Lock()
	streams := append([]chan observability.Event(nil), b.streams...)
	b.mu.Unlock()

	critical := criticalEventTypes[event.Type]
	for _, ch := range streams {
		if critical {
			select {
			case ch <- event:
			case <-ctx.Done():
			}
			continue
		}

		select {
		case ch <- event:
		default:
			// drop-oldest: make room for the new chatty event rather than
			// blocking the run on a slow subscriber.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

func (b *eventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.streams {
		close(ch)
	}
	b.streams = nil
}
