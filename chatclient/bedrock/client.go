// Package bedrock adapts the AWS Bedrock Converse API to the
// chatclient.ChatClient contract.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	smithy "github.com/aws/smithy-go"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
)

// isRetryable reports whether err represents a transient Bedrock failure
// (throttling) that a caller can reasonably retry with backoff.
func isRetryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceUnavailableException":
			return true
		}
	}
	return false
}

func bedrockErr(model string, err error) *chatclient.ChatClientError {
	return &chatclient.ChatClientError{Provider: "bedrock", Model: model, Err: err, Retryable: isRetryable(err)}
}

// RuntimeClient is the subset of *bedrockruntime.Client the adapter needs,
// matched so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client implements chatclient.ChatClient on top of AWS Bedrock Converse.
type Client struct {
	runtime     RuntimeClient
	model       string
	maxTokens   int32
	temperature float32
}

// New wraps a configured Bedrock runtime client for the given model ID.
func New(runtime RuntimeClient, model string) *Client {
	return &Client{runtime: runtime, model: model}
}

func (c *Client) Name() string { return "bedrock:" + c.model }

func (c *Client) GetResponse(ctx context.Context, messages []protocol.Message, opts chatclient.Options) (*chatclient.Response, error) {
	msgs, system, err := translateMessages(messages, opts)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "bedrock", Model: c.model, Err: err}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.model),
		Messages: msgs,
		System:   system,
	}
	if cfg := inferenceConfig(opts); cfg != nil {
		input.InferenceConfig = cfg
	}
	if toolCfg := toolConfig(opts.Tools); toolCfg != nil {
		input.ToolConfig = toolCfg
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, bedrockErr(c.model, err)
	}
	return translateOutput(out)
}

func (c *Client) GetStreamingResponse(ctx context.Context, messages []protocol.Message, opts chatclient.Options) (<-chan chatclient.StreamChunk, error) {
	msgs, system, err := translateMessages(messages, opts)
	if err != nil {
		return nil, &chatclient.ChatClientError{Provider: "bedrock", Model: c.model, Err: err}
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.model),
		Messages: msgs,
		System:   system,
	}
	if cfg := inferenceConfig(opts); cfg != nil {
		input.InferenceConfig = cfg
	}
	if toolCfg := toolConfig(opts.Tools); toolCfg != nil {
		input.ToolConfig = toolCfg
	}

	out, err := c.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, bedrockErr(c.model, err)
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, &chatclient.ChatClientError{Provider: "bedrock", Model: c.model, Err: fmt.Errorf("converse stream: missing event stream")}
	}

	out2 := make(chan chatclient.StreamChunk)
	go func() {
		defer close(out2)
		for event := range stream.Events() {
			switch e := event.(type) {
			case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
				if delta, ok := e.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
					out2 <- chatclient.StreamChunk{ContentDelta: delta.Value}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out2 <- chatclient.StreamChunk{Err: bedrockErr(c.model, err)}
			return
		}
		out2 <- chatclient.StreamChunk{Done: true}
	}()

	return out2, nil
}

func inferenceConfig(opts chatclient.Options) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{}
	set := false
	if opts.MaxTokens > 0 {
		v := int32(opts.MaxTokens)
		cfg.MaxTokens = &v
		set = true
	}
	if opts.Temperature > 0 {
		v := float32(opts.Temperature)
		cfg.Temperature = &v
		set = true
	}
	if !set {
		return nil
	}
	return cfg
}

func translateMessages(messages []protocol.Message, opts chatclient.Options) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	if opts.Instructions != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: opts.Instructions})
	}

	out := make([]brtypes.Message, 0, len(messages))
	for _, m := range messages {
		text, ok := m.Content.(string)
		if !ok {
			raw, err := json.Marshal(m.Content)
			if err != nil {
				return nil, nil, fmt.Errorf("encode message content: %w", err)
			}
			text = string(raw)
		}

		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: text})
		case protocol.RoleUser:
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
			})
		case protocol.RoleAssistant:
			blocks := []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}}
			for _, tc := range m.ToolCalls {
				var input document.Interface
				if tc.Arguments != "" {
					input = document.NewLazyDocument(json.RawMessage(tc.Arguments))
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     input,
				}})
			}
			out = append(out, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case protocol.RoleTool:
			out = append(out, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
					ToolUseId: aws.String(m.ToolCallID),
					Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: text}},
				}}},
			})
		}
	}
	return out, system, nil
}

func toolConfig(tools []protocol.Tool) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		schema, _ := json.Marshal(t.Parameters)
		specs = append(specs, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpec{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(json.RawMessage(schema))},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

func translateOutput(out *bedrockruntime.ConverseOutput) (*chatclient.Response, error) {
	resp := &chatclient.Response{
		Message:      protocol.Message{Role: protocol.RoleAssistant},
		FinishReason: string(out.StopReason),
	}
	if out.Usage != nil {
		resp.Usage = &chatclient.Usage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock: unexpected output variant %T", out.Output)
	}

	var text string
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text += b.Value
		case *brtypes.ContentBlockMemberToolUse:
			var args string
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err == nil {
					args = string(raw)
				}
			}
			resp.Message.ToolCalls = append(resp.Message.ToolCalls, protocol.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.Message.Content = text
	return resp, nil
}
