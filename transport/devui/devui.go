// Package devui streams a workflow run's events to a local developer tool
// over a WebSocket, message-typed the way cklxx-elephant.ai's webui package
// frames its own live session stream.
package devui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentflow/kernel/observability"
)

// MessageType identifies the kind of frame on the wire.
type MessageType string

const (
	WSMsgTypeConnect    MessageType = "connect"
	WSMsgTypeDisconnect MessageType = "disconnect"
	WSMsgTypeMessage    MessageType = "message"
	WSMsgTypeStream     MessageType = "stream"
	WSMsgTypeError      MessageType = "error"
	WSMsgTypeHeartbeat  MessageType = "heartbeat"
	WSMsgTypeComplete   MessageType = "complete"
)

// WebSocketMessage is one frame exchanged with a dev-tool client.
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	SessionID string      `json:"sessionId"`
	Data      any         `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev tooling runs on localhost against arbitrary local front ends;
	// origin checking is left to a reverse proxy in front of this.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server upgrades HTTP connections into a live event feed. Each run
// registers its event channel via Watch before a client can connect to it.
type Server struct {
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]<-chan observability.Event
}

// NewServer returns a devui Server. A nil logger falls back to slog.Default.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, runs: make(map[string]<-chan observability.Event)}
}

// Watch registers events as the feed for runID. Call it once per run,
// typically right after workflow.Runner.Events(), before Runner.Run starts
// so no early events are missed. The registration is removed when a
// connected client's feed ends (the channel closes or a write fails); a run
// no client ever connects to stays registered.
func (s *Server) Watch(runID string, events <-chan observability.Event) {
	s.mu.Lock()
	s.runs[runID] = events
	s.mu.Unlock()
}

// ServeHTTP implements http.Handler so Server can be mounted directly, e.g.
// mux.Handle("/ws", devui.NewServer(nil)).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("run_id")
	if sessionID == "" {
		http.Error(w, "run_id query parameter required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	events, ok := s.runs[sessionID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("no run registered for run_id %q", sessionID), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("devui: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(WebSocketMessage{
		Type:      WSMsgTypeConnect,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readLoop(conn, sessionID)
	}()

	pump(conn, sessionID, events)

	s.mu.Lock()
	delete(s.runs, sessionID)
	s.mu.Unlock()

	<-done
}

// readLoop answers heartbeats and otherwise discards inbound frames; devui
// is a read-mostly feed, not a command channel. Returns once the connection
// closes.
func (s *Server) readLoop(conn *websocket.Conn, sessionID string) {
	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == WSMsgTypeHeartbeat {
			_ = conn.WriteJSON(WebSocketMessage{
				Type:      WSMsgTypeHeartbeat,
				Timestamp: time.Now(),
				SessionID: sessionID,
			})
		}
	}
}

// pump drains events until the channel closes, writing each as a "stream"
// frame and finishing with a "complete" frame.
func pump(conn *websocket.Conn, sessionID string, events <-chan observability.Event) {
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		msg := WebSocketMessage{
			Type:      WSMsgTypeStream,
			Timestamp: time.Now(),
			SessionID: sessionID,
			Data:      json.RawMessage(payload),
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = conn.WriteJSON(WebSocketMessage{
		Type:      WSMsgTypeComplete,
		Timestamp: time.Now(),
		SessionID: sessionID,
	})
}
