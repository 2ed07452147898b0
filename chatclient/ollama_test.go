package chatclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
)

func TestOllamaGetResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hi there"},
			"done":              true,
			"prompt_eval_count": 3,
			"eval_count":        4,
		})
	}))
	defer srv.Close()

	client := chatclient.NewOllamaClient(srv.URL, "llama3")
	resp, err := client.GetResponse(context.Background(), []protocol.Message{
		{Role: protocol.RoleUser, Content: "hello"},
	}, chatclient.Options{})

	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Message.Content)
	require.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestOllamaGetStreamingResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"message":{"role":"assistant","content":"hi"},"done":false}`,
			`{"message":{"role":"assistant","content":" there"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":1,"eval_count":2}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	}))
	defer srv.Close()

	client := chatclient.NewOllamaClient(srv.URL, "llama3")
	stream, err := client.GetStreamingResponse(context.Background(), []protocol.Message{
		{Role: protocol.RoleUser, Content: "hello"},
	}, chatclient.Options{})
	require.NoError(t, err)

	var text string
	var sawDone bool
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		text += chunk.ContentDelta
		if chunk.Done {
			sawDone = true
			require.Equal(t, 3, chunk.Usage.TotalTokens)
		}
	}
	require.Equal(t, "hi there", text)
	require.True(t, sawDone)
}
