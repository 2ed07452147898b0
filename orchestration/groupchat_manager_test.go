package orchestration

import (
	"context"
	"testing"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
)

type fixedReplyClient struct{ reply string }

func (c *fixedReplyClient) Name() string { return "fixed" }

func (c *fixedReplyClient) GetResponse(context.Context, []protocol.Message, chatclient.Options) (*chatclient.Response, error) {
	return &chatclient.Response{Message: protocol.Message{Role: protocol.RoleAssistant, Content: c.reply}}, nil
}

func (c *fixedReplyClient) GetStreamingResponse(context.Context, []protocol.Message, chatclient.Options) (<-chan chatclient.StreamChunk, error) {
	panic("not used in this test")
}

func TestPromptManagerTerminatesOnKeyword(t *testing.T) {
	terminate := PromptManager(&fixedReplyClient{reply: "looks complete, TERMINATE"}, "decide if the chat is done")
	if !terminate([]GroupChatTurn{{Round: 1, Replies: []any{"hi"}}}) {
		t.Fatal("expected terminate=true")
	}
}

func TestPromptManagerContinuesWithoutKeyword(t *testing.T) {
	terminate := PromptManager(&fixedReplyClient{reply: "let's keep going"}, "decide if the chat is done")
	if terminate([]GroupChatTurn{{Round: 1, Replies: []any{"hi"}}}) {
		t.Fatal("expected terminate=false")
	}
}
