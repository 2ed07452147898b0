// Package chatclient defines the ChatClient contract every model adapter
// (OpenAI, Anthropic, Bedrock, Ollama) implements, and the request/response
// shapes executors built on top of a ChatClient exchange with it.
package chatclient

import (
	"context"

	"github.com/agentflow/kernel/core/protocol"
)

// Options is the named-field options bag a caller passes alongside the
// message history. Unknown entries belong in Extra and are passed through
// to the underlying provider without interpretation.
type Options struct {
	Tools          []protocol.Tool
	ToolChoice     string
	ResponseFormat string
	Instructions   string
	MaxTokens      int
	Temperature    float64
	Reasoning      map[string]any
	Thinking       map[string]any
	Store          bool
	SessionID      string
	Extra          map[string]any
}

// Usage reports token accounting for one call, when the provider exposes it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a ChatClient's normalized reply: one assistant message (which
// may itself carry ToolCalls for the caller to execute and feed back), plus
// whatever usage and finish-reason metadata the provider reported.
type Response struct {
	Message      protocol.Message
	FinishReason string
	Usage        *Usage
}

// StreamChunk is one increment of a streaming response: either a content
// delta, a tool call, or the terminal chunk (Done=true, which also carries
// the final Usage when the provider reports it there). Tool calls are passed
// on as the adapter receives them: the OpenAI adapter emits one chunk per
// streamed tool-call fragment and does not join fragments of the same call.
type StreamChunk struct {
	ContentDelta string
	ToolCall     *protocol.ToolCall
	Done         bool
	Usage        *Usage
	Err          error
}

// ChatClient is the contract every model adapter implements: a synchronous
// call and a streaming one, both taking the same messages/options shape.
type ChatClient interface {
	Name() string
	GetResponse(ctx context.Context, messages []protocol.Message, opts Options) (*Response, error)
	GetStreamingResponse(ctx context.Context, messages []protocol.Message, opts Options) (<-chan StreamChunk, error)
}

// ChatClientError wraps a failure from a ChatClient call with the
// provider/model context an agent executor needs to report a useful error.
type ChatClientError struct {
	Provider  string
	Model     string
	Err       error
	Retryable bool
}

func (e *ChatClientError) Error() string {
	return "chatclient: " + e.Provider + " (" + e.Model + "): " + e.Err.Error()
}

func (e *ChatClientError) Unwrap() error { return e.Err }
