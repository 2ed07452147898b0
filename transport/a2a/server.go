// Package a2a exposes registered workflows over an Agent-to-Agent style HTTP
// protocol: an agent directory for discovery, a task endpoint that kicks off
// a run, and a status endpoint for polling it to completion.
//
// https://a2a-protocol.org/ describes the protocol this package implements a
// subset of: agent cards, tasks, and task status. It deliberately does not
// reach for a generated RPC stack (connect-go, protobuf) since nothing in
// this codebase's source material actually generates or hand-maintains a
// .proto-derived service for it; see DESIGN.md for why that dependency was
// dropped rather than faked.
package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow/kernel/workflow"
)

// AgentCard advertises a registered workflow's capabilities and endpoints.
type AgentCard struct {
	AgentID     string         `json:"agentId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Endpoints   AgentEndpoints `json:"endpoints"`
}

// AgentEndpoints lists the URLs for interacting with one agent.
type AgentEndpoints struct {
	Task   string `json:"task"`
	Status string `json:"status"`
}

// AgentDirectory lists every agent registered with a Server.
type AgentDirectory struct {
	Agents []AgentCard `json:"agents"`
	Total  int         `json:"total"`
}

// TaskRequest starts a run of a registered workflow.
type TaskRequest struct {
	TaskID string `json:"taskId"`
	Input  any    `json:"input"`
}

// TaskStatus mirrors workflow.RunState in A2A vocabulary.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskResponse reports a task's current status and, once finished, its
// outputs or error.
type TaskResponse struct {
	TaskID    string     `json:"taskId"`
	Status    TaskStatus `json:"status"`
	Outputs   []any      `json:"outputs,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   time.Time  `json:"endedAt,omitempty"`
}

// registeredAgent pairs a workflow factory with the card advertised for it.
// New runners are built per task so concurrent tasks against the same agent
// don't share Runner state.
type registeredAgent struct {
	card    AgentCard
	newRun  func() (*workflow.Runner, error)
}

// Server exposes registered workflows as A2A agents over plain HTTP.
type Server struct {
	baseURL string

	mu     sync.RWMutex
	agents map[string]registeredAgent
	tasks  map[string]*TaskResponse
}

// NewServer returns a Server whose agent cards advertise endpoints under
// baseURL (e.g. "http://localhost:8090").
func NewServer(baseURL string) *Server {
	return &Server{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		agents:  make(map[string]registeredAgent),
		tasks:   make(map[string]*TaskResponse),
	}
}

// RegisterWorkflow advertises a workflow under agentID. newRun builds a
// fresh Runner for each task so independent tasks never share Runner state;
// typically this closes over workflow.NewRunner(wf, opts...).
func (s *Server) RegisterWorkflow(agentID, name, description string, newRun func() (*workflow.Runner, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agentID] = registeredAgent{
		card: AgentCard{
			AgentID:     agentID,
			Name:        name,
			Description: description,
			Endpoints: AgentEndpoints{
				Task:   fmt.Sprintf("%s/agents/%s/tasks", s.baseURL, agentID),
				Status: fmt.Sprintf("%s/agents/%s/tasks/{taskId}", s.baseURL, agentID),
			},
		},
		newRun: newRun,
	}
}

// Handler returns the http.Handler serving the A2A surface: GET /agents,
// GET /agents/{id}, POST /agents/{id}/tasks, GET /agents/{id}/tasks/{taskId}.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/agents", s.handleListAgents)
	mux.HandleFunc("/agents/", s.handleAgentRoutes)
	return mux
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cards := make([]AgentCard, 0, len(s.agents))
	for _, a := range s.agents {
		cards = append(cards, a.card)
	}
	respondJSON(w, http.StatusOK, AgentDirectory{Agents: cards, Total: len(cards)})
}

func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/agents/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "agent id required", http.StatusBadRequest)
		return
	}
	agentID := parts[0]

	switch {
	case len(parts) == 1:
		s.handleGetAgentCard(w, r, agentID)
	case len(parts) == 2 && parts[1] == "tasks":
		s.handleCreateTask(w, r, agentID)
	case len(parts) == 3 && parts[1] == "tasks":
		s.handleGetTask(w, r, parts[2])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleGetAgentCard(w http.ResponseWriter, r *http.Request, agentID string) {
	s.mu.RLock()
	a, ok := s.agents[agentID]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, a.card)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	a, ok := s.agents[agentID]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}

	resp := &TaskResponse{TaskID: req.TaskID, Status: TaskStatusRunning, StartedAt: time.Now()}
	s.mu.Lock()
	s.tasks[req.TaskID] = resp
	s.mu.Unlock()

	go s.runTask(a, req, resp)

	respondJSON(w, http.StatusAccepted, resp)
}

func (s *Server) runTask(a registeredAgent, req TaskRequest, resp *TaskResponse) {
	runner, err := a.newRun()
	if err != nil {
		s.failTask(resp, err)
		return
	}
	result, err := runner.Run(context.Background(), req.Input)

	s.mu.Lock()
	defer s.mu.Unlock()
	resp.EndedAt = time.Now()
	if err != nil {
		resp.Status = TaskStatusFailed
		resp.Error = err.Error()
		return
	}
	if result.State == workflow.RunFailed {
		resp.Status = TaskStatusFailed
		resp.Error = "workflow run failed"
		return
	}
	resp.Status = TaskStatusCompleted
	resp.Outputs = result.Outputs
}

func (s *Server) failTask(resp *TaskResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp.Status = TaskStatusFailed
	resp.Error = err.Error()
	resp.EndedAt = time.Now()
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	resp, ok := s.tasks[taskID]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
