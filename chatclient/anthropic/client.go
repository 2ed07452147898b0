// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's Messages
// API to the chatclient.ChatClient contract.
package anthropic

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
)

// Client implements chatclient.ChatClient against the Anthropic Messages API.
type Client struct {
	messages  *sdk.MessageService
	model     string
	maxTokens int64
}

// New wraps an already-configured Messages service.
func New(messages *sdk.MessageService, model string, maxTokens int64) *Client {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{messages: messages, model: model, maxTokens: maxTokens}
}

// NewFromAPIKey constructs a client using the SDK's default HTTP client.
func NewFromAPIKey(apiKey, model string, maxTokens int64) *Client {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, model, maxTokens)
}

func (c *Client) Name() string { return "anthropic:" + c.model }

func (c *Client) GetResponse(ctx context.Context, messages []protocol.Message, opts chatclient.Options) (*chatclient.Response, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "anthropic", Model: c.model, Err: err}
	}

	msg, err := c.messages.New(ctx, *params)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "anthropic", Model: c.model, Err: err}
	}
	return translateMessage(msg), nil
}

func (c *Client) GetStreamingResponse(ctx context.Context, messages []protocol.Message, opts chatclient.Options) (<-chan chatclient.StreamChunk, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "anthropic", Model: c.model, Err: err}
	}

	stream := c.messages.NewStreaming(ctx, *params)
	out := make(chan chatclient.StreamChunk)

	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			switch delta := event.Delta.(type) {
			case sdk.TextDelta:
				if delta.Text != "" {
					out <- chatclient.StreamChunk{ContentDelta: delta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- chatclient.StreamChunk{Err: &chatclient.ChatClientError{Provider: "anthropic", Model: c.model, Err: err}}
			return
		}
		out <- chatclient.StreamChunk{Done: true}
	}()

	return out, nil
}

func (c *Client) buildParams(messages []protocol.Message, opts chatclient.Options) (*sdk.MessageNewParams, error) {
	var system []sdk.TextBlockParam
	conversation := make([]sdk.MessageParam, 0, len(messages))

	if opts.Instructions != "" {
		system = append(system, sdk.TextBlockParam{Text: opts.Instructions})
	}

	for _, m := range messages {
		text, ok := m.Content.(string)
		if !ok {
			text = fmt.Sprintf("%v", m.Content)
		}
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: text})
		case protocol.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(text)))
		case protocol.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(text)))
		case protocol.RoleTool:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, text, false)))
		}
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxTokens,
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if len(opts.Tools) > 0 {
		tools := make([]sdk.ToolUnionParam, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			tools = append(tools, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
				Properties: t.Parameters["properties"],
			}, t.Name))
		}
		params.Tools = tools
	}
	return &params, nil
}

func translateMessage(msg *sdk.Message) *chatclient.Response {
	resp := &chatclient.Response{
		Message:      protocol.Message{Role: protocol.RoleAssistant},
		FinishReason: string(msg.StopReason),
		Usage: &chatclient.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	var text string
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			text += b.Text
		case sdk.ToolUseBlock:
			resp.Message.ToolCalls = append(resp.Message.ToolCalls, protocol.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(b.Input),
			})
		}
	}
	resp.Message.Content = text
	return resp
}
