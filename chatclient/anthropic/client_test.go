package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/chatclient/anthropic"
	"github.com/agentflow/kernel/core/protocol"
)

func TestAnthropicGetResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "hi there"},
			},
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 5,
			},
		})
	}))
	defer srv.Close()

	sdkClient := sdk.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"))
	client := anthropic.New(&sdkClient.Messages, "claude-3-5-sonnet-20241022", 1024)

	resp, err := client.GetResponse(context.Background(), []protocol.Message{
		{Role: protocol.RoleUser, Content: "hello"},
	}, chatclient.Options{Instructions: "be nice"})

	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Message.Content)
	require.Equal(t, 15, resp.Usage.TotalTokens)
	require.Equal(t, "end_turn", resp.FinishReason)
}

func TestAnthropicGetResponseWrapsTransportError(t *testing.T) {
	sdkClient := sdk.NewClient(option.WithBaseURL("http://127.0.0.1:0"), option.WithAPIKey("test"))
	client := anthropic.New(&sdkClient.Messages, "claude-3-5-sonnet-20241022", 1024)

	_, err := client.GetResponse(context.Background(), []protocol.Message{
		{Role: protocol.RoleUser, Content: "hello"},
	}, chatclient.Options{})

	require.Error(t, err)
	var ccErr *chatclient.ChatClientError
	require.ErrorAs(t, err, &ccErr)
	require.Equal(t, "anthropic", ccErr.Provider)
}
