// Package openai adapts github.com/openai/openai-go's Chat Completions
// client to the chatclient.ChatClient contract.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
)

// Client implements chatclient.ChatClient against the OpenAI Chat
// Completions API.
type Client struct {
	client *sdk.Client
	model  string
}

// New wraps an already-configured OpenAI SDK client.
func New(client *sdk.Client, model string) *Client {
	return &Client{client: client, model: model}
}

// NewFromAPIKey constructs a client from an API key, using the SDK's default
// HTTP transport and base URL.
func NewFromAPIKey(apiKey, model string) *Client {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c, model)
}

func (c *Client) Name() string { return "openai:" + c.model }

func (c *Client) GetResponse(ctx context.Context, messages []protocol.Message, opts chatclient.Options) (*chatclient.Response, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "openai", Model: c.model, Err: err}
	}

	completion, err := c.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "openai", Model: c.model, Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &chatclient.ChatClientError{Provider: "openai", Model: c.model, Err: fmt.Errorf("empty choices in response")}
	}

	choice := completion.Choices[0]
	msg := protocol.Message{Role: protocol.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, protocol.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &chatclient.Response{
		Message:      msg,
		FinishReason: string(choice.FinishReason),
		Usage: &chatclient.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (c *Client) GetStreamingResponse(ctx context.Context, messages []protocol.Message, opts chatclient.Options) (<-chan chatclient.StreamChunk, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "openai", Model: c.model, Err: err}
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, *params)
	out := make(chan chatclient.StreamChunk)

	go func() {
		defer close(out)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				out <- chatclient.StreamChunk{ContentDelta: delta.Content}
			}
			for _, tc := range delta.ToolCalls {
				out <- chatclient.StreamChunk{ToolCall: &protocol.ToolCall{
					ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
				}}
			}
		}
		if err := stream.Err(); err != nil {
			out <- chatclient.StreamChunk{Err: &chatclient.ChatClientError{Provider: "openai", Model: c.model, Err: err}}
			return
		}
		out <- chatclient.StreamChunk{Done: true}
	}()

	return out, nil
}

func (c *Client) buildParams(messages []protocol.Message, opts chatclient.Options) (*sdk.ChatCompletionNewParams, error) {
	model := c.model
	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if opts.Instructions != "" {
		msgs = append(msgs, sdk.SystemMessage(opts.Instructions))
	}
	for _, m := range messages {
		content, ok := m.Content.(string)
		if !ok {
			raw, err := json.Marshal(m.Content)
			if err != nil {
				return nil, fmt.Errorf("encode message content: %w", err)
			}
			content = string(raw)
		}
		switch m.Role {
		case protocol.RoleSystem:
			msgs = append(msgs, sdk.SystemMessage(content))
		case protocol.RoleUser:
			msgs = append(msgs, sdk.UserMessage(content))
		case protocol.RoleAssistant:
			msgs = append(msgs, sdk.AssistantMessage(content))
		case protocol.RoleTool:
			msgs = append(msgs, sdk.ToolMessage(content, m.ToolCallID))
		}
	}

	params := sdk.ChatCompletionNewParams{
		Model:    model,
		Messages: msgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if len(opts.Tools) > 0 {
		tools := make([]sdk.ChatCompletionToolParam, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			tools = append(tools, sdk.ChatCompletionToolParam{
				Function: sdk.FunctionDefinitionParam{
					Name:        t.Name,
					Description: sdk.String(t.Description),
					Parameters:  sdk.FunctionParameters(t.Parameters),
				},
			})
		}
		params.Tools = tools
	}
	return &params, nil
}
