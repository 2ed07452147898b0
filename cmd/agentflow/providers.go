package main

import (
	"fmt"
	"os"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/chatclient/anthropic"
	"github.com/agentflow/kernel/chatclient/bedrock"
	"github.com/agentflow/kernel/chatclient/openai"

	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/aws/aws-sdk-go-v2/config"
	"context"
)

// buildClient constructs a chatclient.ChatClient for the named provider,
// reading credentials from the environment the same way each provider's
// own SDK normally would. model, if empty, falls back to a sane per-provider
// default.
func buildClient(provider, model string) (chatclient.ChatClient, error) {
	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		if model == "" {
			model = "gpt-4o"
		}
		return openai.NewFromAPIKey(apiKey, model), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return anthropic.NewFromAPIKey(apiKey, model, 4096), nil

	case "bedrock":
		if model == "" {
			model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
		}
		awsCfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		runtime := bedrockruntime.NewFromConfig(awsCfg)
		return bedrock.New(runtime, model), nil

	case "ollama":
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if model == "" {
			model = "llama3.1"
		}
		return chatclient.NewOllamaClient(baseURL, model), nil

	default:
		return nil, fmt.Errorf("unknown provider %q (want: openai, anthropic, bedrock, ollama)", provider)
	}
}
