package chatclient

// Ollama has no client library anywhere in this module's dependency stack,
// and its HTTP API (POST /api/chat, newline-delimited JSON) is small enough
// that wrapping it in a third-party SDK would buy nothing a stdlib
// net/http + encoding/json client doesn't already give us directly. This is
// the one ChatClient adapter built on the standard library alone.

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentflow/kernel/core/protocol"
)

// OllamaClient implements ChatClient against a local or remote Ollama
// server's /api/chat endpoint.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewOllamaClient builds a client against the given Ollama server base URL
// (e.g. "http://localhost:11434") for the named model.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{httpClient: http.DefaultClient, baseURL: baseURL, model: model}
}

func (c *OllamaClient) Name() string { return "ollama:" + c.model }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Usage   struct {
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	} `json:"-"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (c *OllamaClient) buildRequest(messages []protocol.Message, opts Options, stream bool) (*ollamaChatRequest, error) {
	req := &ollamaChatRequest{Model: c.model, Stream: stream}
	if opts.Instructions != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: opts.Instructions})
	}
	for _, m := range messages {
		text, ok := m.Content.(string)
		if !ok {
			raw, err := json.Marshal(m.Content)
			if err != nil {
				return nil, fmt.Errorf("encode message content: %w", err)
			}
			text = string(raw)
		}
		req.Messages = append(req.Messages, ollamaMessage{Role: string(m.Role), Content: text})
	}
	if opts.Temperature > 0 {
		req.Options = map[string]any{"temperature": opts.Temperature}
	}
	return req, nil
}

func (c *OllamaClient) GetResponse(ctx context.Context, messages []protocol.Message, opts Options) (*Response, error) {
	req, err := c.buildRequest(messages, opts, false)
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: fmt.Errorf("ollama returned status %d", resp.StatusCode)}
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}

	return &Response{
		Message:      protocol.Message{Role: protocol.RoleAssistant, Content: out.Message.Content},
		FinishReason: "stop",
		Usage: &Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

func (c *OllamaClient) GetStreamingResponse(ctx context.Context, messages []protocol.Message, opts Options) (<-chan StreamChunk, error) {
	req, err := c.buildRequest(messages, opts, true)
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ChatClientError{Provider: "ollama", Model: c.model, Err: err}
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			out <- StreamChunk{Err: &ChatClientError{Provider: "ollama", Model: c.model, Err: fmt.Errorf("ollama returned status %d", resp.StatusCode)}}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				out <- StreamChunk{Err: &ChatClientError{Provider: "ollama", Model: c.model, Err: err}}
				return
			}
			if chunk.Message.Content != "" {
				out <- StreamChunk{ContentDelta: chunk.Message.Content}
			}
			if chunk.Done {
				out <- StreamChunk{Done: true, Usage: &Usage{
					PromptTokens:     chunk.PromptEvalCount,
					CompletionTokens: chunk.EvalCount,
					TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
				}}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- StreamChunk{Err: &ChatClientError{Provider: "ollama", Model: c.model, Err: err}}
		}
	}()

	return out, nil
}
