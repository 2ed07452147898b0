// Package agentexec wraps a chatclient.ChatClient and a tool registry into
// a workflow.Executor: a single agent's observe/think/act loop,
// generalized so it can sit as any node in a
// workflow.Workflow graph (a Sequential stage, a Handoff participant, or a
// declarative "agent" node). It handles string prompts, so it does not take
// GroupChat's []any rounds, and GroupChat's prompt-based manager
// (orchestration.PromptManager) calls its chat client directly rather than
// through this executor.
package agentexec

import (
	"fmt"
	"sync"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
	"github.com/agentflow/kernel/tool"
	"github.com/agentflow/kernel/workflow"
)

// Config configures one agent executor.
type Config struct {
	// Client is the model backing this agent. Required.
	Client chatclient.ChatClient

	// Instructions is the system prompt prepended to every call.
	Instructions string

	// Tools is this agent's tool registry. Nil means no tools advertised.
	Tools *tool.Registry

	// MaxIterations bounds the think/act loop per incoming request.
	// Zero means 10.
	MaxIterations int

	// Terminal marks this agent as a workflow endpoint: its final answer
	// is yielded as output rather than forwarded downstream. Set this for
	// an agent with no outgoing edge.
	Terminal bool
}

// pendingCall tracks a tool call suspended on approval, keyed by the
// external-request id the suspension returned.
type pendingCall struct {
	messages []protocol.Message
	call     protocol.ToolCall
	rest     []protocol.ToolCall
}

// Executor drives Config.Client through tool calls until it produces a
// final answer, gating any tool whose approval mode requires it behind a
// RequestExternalInput suspension.
type Executor struct {
	*workflow.BaseExecutor
	cfg Config

	mu      sync.Mutex
	pending map[string]pendingCall
}

// New builds an agent executor. If cfg.Tools has any ApprovalAlwaysRequire
// entries, wire the returned Executor with AddTo rather than
// Builder.AddExecutor directly -- it needs a self-loop edge to receive its
// own approval responses, exactly like Magentic's orchestrator does for
// plan review.
func New(id string, cfg Config) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	e := &Executor{
		BaseExecutor: workflow.NewBaseExecutor(id),
		cfg:          cfg,
		pending:      make(map[string]pendingCall),
	}
	workflow.RegisterHandler(e.BaseExecutor, e.handlePrompt)
	workflow.RegisterHandler(e.BaseExecutor, e.handleApproval)
	return e
}

// AddTo registers an agent executor with b and, if it was built with
// approval-gated tools, also wires the self-loop edge its approval
// responses need to route back to it.
func AddTo(b *workflow.Builder, id string, cfg Config) *Executor {
	e := New(id, cfg)
	b.AddExecutor(e)
	if e.HasGatedTools() {
		b.AddEdge(workflow.NewDirectEdge(e.ID(), e.ID()))
	}
	return e
}

// HasGatedTools reports whether this executor has at least one tool whose
// approval mode requires external sign-off, meaning the graph it sits in
// needs a self-loop edge for its approval responses to reach it.
func (e *Executor) HasGatedTools() bool {
	if e.cfg.Tools == nil {
		return false
	}
	for _, t := range e.cfg.Tools.List() {
		if e.cfg.Tools.RequiresApproval(t.Name) {
			return true
		}
	}
	return false
}

func (e *Executor) handlePrompt(wctx *workflow.Context, prompt string) error {
	messages := []protocol.Message{protocol.NewMessage(protocol.RoleUser, prompt)}
	return e.converse(wctx, messages, 1)
}

func (e *Executor) handleApproval(wctx *workflow.Context, resp workflow.ExternalResponse) error {
	e.mu.Lock()
	pc, ok := e.pending[resp.RequestID]
	delete(e.pending, resp.RequestID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("agentexec: %s: no pending call for request %s", e.ID(), resp.RequestID)
	}

	approved, _ := resp.Data.(bool)
	messages := append([]protocol.Message(nil), pc.messages...)
	if approved {
		result, err := e.cfg.Tools.Execute(wctx.Context(), pc.call.Name, []byte(pc.call.Arguments))
		if err != nil {
			messages = append(messages, protocol.Message{
				Role: protocol.RoleTool, Content: fmt.Sprintf("error: %s", err), ToolCallID: pc.call.ID,
			})
		} else {
			messages = append(messages, protocol.Message{
				Role: protocol.RoleTool, Content: result.Content, ToolCallID: pc.call.ID,
			})
		}
	} else {
		messages = append(messages, protocol.Message{
			Role: protocol.RoleTool, Content: "tool call rejected by approver", ToolCallID: pc.call.ID,
		})
	}

	suspended, err := e.executeRemaining(wctx, &messages, pc.rest)
	if err != nil {
		return err
	}
	if suspended {
		return nil
	}
	return e.converse(wctx, messages, 1)
}

// executeRemaining runs every tool call in rest that does not itself
// require approval, appending each result to messages. The first call
// still requiring approval stops the loop and suspends via the caller,
// reported back via the suspended return so the caller does not resume
// the conversation loop while another approval is outstanding.
func (e *Executor) executeRemaining(wctx *workflow.Context, messages *[]protocol.Message, rest []protocol.ToolCall) (bool, error) {
	for i, tc := range rest {
		if e.cfg.Tools.RequiresApproval(tc.Name) {
			return true, e.suspend(wctx, *messages, tc, rest[i+1:])
		}
		result, err := e.cfg.Tools.Execute(wctx.Context(), tc.Name, []byte(tc.Arguments))
		if err != nil {
			*messages = append(*messages, protocol.Message{
				Role: protocol.RoleTool, Content: fmt.Sprintf("error: %s", err), ToolCallID: tc.ID,
			})
			continue
		}
		*messages = append(*messages, protocol.Message{
			Role: protocol.RoleTool, Content: result.Content, ToolCallID: tc.ID,
		})
	}
	return false, nil
}

func (e *Executor) suspend(wctx *workflow.Context, messages []protocol.Message, call protocol.ToolCall, rest []protocol.ToolCall) error {
	requestID, err := wctx.RequestExternalInput(map[string]any{
		"tool": call.Name,
		"args": call.Arguments,
	})
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.pending[requestID] = pendingCall{messages: messages, call: call, rest: rest}
	e.mu.Unlock()
	return nil
}

func (e *Executor) converse(wctx *workflow.Context, messages []protocol.Message, iteration int) error {
	var tools []protocol.Tool
	if e.cfg.Tools != nil {
		tools = e.cfg.Tools.List()
	}

	for ; iteration <= e.cfg.MaxIterations; iteration++ {
		resp, err := e.cfg.Client.GetResponse(wctx.Context(), messages, chatclient.Options{
			Tools:        tools,
			Instructions: e.cfg.Instructions,
		})
		if err != nil {
			return err
		}

		if len(resp.Message.ToolCalls) == 0 {
			return e.yield(wctx, resp.Message.Content)
		}

		messages = append(messages, resp.Message)
		if e.cfg.Tools == nil {
			return fmt.Errorf("agentexec: %s: model requested tools but none are registered", e.ID())
		}

		calls := resp.Message.ToolCalls
		for i, tc := range calls {
			if e.cfg.Tools.RequiresApproval(tc.Name) {
				return e.suspend(wctx, messages, tc, calls[i+1:])
			}
			result, execErr := e.cfg.Tools.Execute(wctx.Context(), tc.Name, []byte(tc.Arguments))
			if execErr != nil {
				messages = append(messages, protocol.Message{
					Role: protocol.RoleTool, Content: fmt.Sprintf("error: %s", execErr), ToolCallID: tc.ID,
				})
				continue
			}
			messages = append(messages, protocol.Message{
				Role: protocol.RoleTool, Content: result.Content, ToolCallID: tc.ID,
			})
		}
	}
	return fmt.Errorf("agentexec: %s: exceeded %d iterations without a final answer", e.ID(), e.cfg.MaxIterations)
}

func (e *Executor) yield(wctx *workflow.Context, content any) error {
	if e.cfg.Terminal {
		return wctx.YieldOutput(content)
	}
	return wctx.SendMessage(content)
}
