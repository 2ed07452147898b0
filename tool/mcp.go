package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentflow/kernel/core/protocol"
)

// MCPServerConfig configures a connection to one MCP server over stdio.
type MCPServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	// Filter, if non-empty, limits which remote tools get registered.
	Filter []string
}

// RegisterMCPServer connects to an MCP server over stdio, lists its tools,
// and registers each as a Descriptor whose Handler forwards CallTool to the
// server. The caller owns the returned closer and must Close it when the
// registry is done using these tools.
func RegisterMCPServer(ctx context.Context, r *Registry, cfg MCPServerConfig) (func() error, error) {
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("create mcp client %s: %w", cfg.Name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client %s: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentflow", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("initialize mcp client %s: %w", cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("list tools from mcp server %s: %w", cfg.Name, err)
	}

	var filter map[string]bool
	if len(cfg.Filter) > 0 {
		filter = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filter[name] = true
		}
	}

	for _, remote := range listResp.Tools {
		if filter != nil && !filter[remote.Name] {
			continue
		}
		name := remote.Name
		descriptor := Descriptor{
			Tool: protocol.Tool{
				Name:        name,
				Description: remote.Description,
				Parameters:  convertSchema(remote.InputSchema),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (Result, error) {
				return callMCPTool(ctx, mcpClient, name, args)
			},
		}
		if err := r.Register(descriptor); err != nil {
			mcpClient.Close()
			return nil, fmt.Errorf("register mcp tool %s: %w", name, err)
		}
	}

	return mcpClient.Close, nil
}

func callMCPTool(ctx context.Context, mcpClient *client.Client, name string, args json.RawMessage) (Result, error) {
	var params map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return Result{}, fmt.Errorf("decode arguments for %s: %w", name, err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = params

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("call mcp tool %s: %w", name, err)
	}

	var text string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return Result{Content: text, IsError: resp.IsError}, nil
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	out := map[string]any{"type": "object"}
	if schema.Properties != nil {
		out["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
