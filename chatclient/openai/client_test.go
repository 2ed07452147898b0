package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/chatclient/openai"
	"github.com/agentflow/kernel/core/protocol"
)

func TestOpenAIGetResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": "hi there",
					},
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     3,
				"completion_tokens": 4,
				"total_tokens":      7,
			},
		})
	}))
	defer srv.Close()

	sdkClient := sdk.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"))
	client := openai.New(&sdkClient, "gpt-4o-mini")

	resp, err := client.GetResponse(context.Background(), []protocol.Message{
		{Role: protocol.RoleUser, Content: "hello"},
	}, chatclient.Options{Instructions: "be nice"})

	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Message.Content)
	require.Equal(t, 7, resp.Usage.TotalTokens)
	require.Equal(t, "stop", resp.FinishReason)
}

func TestOpenAIGetResponseWrapsTransportError(t *testing.T) {
	sdkClient := sdk.NewClient(option.WithBaseURL("http://127.0.0.1:0"), option.WithAPIKey("test"))
	client := openai.New(&sdkClient, "gpt-4o-mini")

	_, err := client.GetResponse(context.Background(), []protocol.Message{
		{Role: protocol.RoleUser, Content: "hello"},
	}, chatclient.Options{})

	require.Error(t, err)
	var ccErr *chatclient.ChatClientError
	require.ErrorAs(t, err, &ccErr)
	require.Equal(t, "openai", ccErr.Provider)
}
