// Package agui serves a live view of workflow runs over HTTP: events read
// off a workflow.Runner's event channel are fanned out to per-run
// Server-Sent-Events subscribers behind a gin.Engine.
package agui

import (
	"encoding/json"
	"sync"

	"github.com/agentflow/kernel/observability"
)

// Broadcaster fans the events of many concurrent runs out to whichever
// HTTP clients are currently watching each run. Events for a run with no
// subscriber are dropped, not buffered: agui is a live view, not an event
// log.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{}
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]map[chan []byte]struct{})}
}

// Pump drains events until the channel closes, publishing each one to
// runID's current subscribers. Call it in a goroutine alongside
// Runner.Run, after subscribing via Runner.Events().
func (b *Broadcaster) Pump(runID string, events <-chan observability.Event) {
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		b.publish(runID, payload)
	}
}

func (b *Broadcaster) publish(runID string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers[runID] {
		select {
		case ch <- payload:
		default:
			// Slow subscriber: drop rather than block the run.
		}
	}
}

// subscribe registers a new channel for runID and returns it along with an
// unsubscribe func the caller must defer.
func (b *Broadcaster) subscribe(runID string) (chan []byte, func()) {
	ch := make(chan []byte, 16)

	b.mu.Lock()
	if b.subscribers[runID] == nil {
		b.subscribers[runID] = make(map[chan []byte]struct{})
	}
	b.subscribers[runID][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subscribers[runID], ch)
		if len(b.subscribers[runID]) == 0 {
			delete(b.subscribers, runID)
		}
		b.mu.Unlock()
		close(ch)
	}
}
