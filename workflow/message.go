// Package workflow implements a typed message graph that routes data
// between independently authored Executors, schedules their handlers
// concurrently, checkpoints in-flight state, and suspends for external
// (human-in-the-loop) input.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the envelope carried across edges. Data holds the typed
// payload; handler dispatch is by the runtime type of Data, not by a
// message-type tag.
type Message struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`

	// TraceID correlates a message back to the run that produced it. A
	// sub-workflow's child run stamps its own run id; the outputs the
	// wrapper re-emits into the parent carry the parent's.
	TraceID string `json:"trace_id,omitempty"`
}

// NewMessage builds a Message originating from sourceID carrying data.
func NewMessage(sourceID string, data any) *Message {
	return &Message{
		ID:        newID(),
		SourceID:  sourceID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (m *Message) WithTrace(traceID string) *Message {
	m.TraceID = traceID
	return m
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{ID: %s, From: %s, Type: %T}", m.ID, m.SourceID, m.Data)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
