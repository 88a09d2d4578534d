package tools

import (
	"context"
	"fmt"
	"strings"

	einomcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// getMCPTools connects to the configured MCP server and adapts its
// discovered tools into the eino tool interface.
func getMCPTools(ctx context.Context, cfg model.ToolsConfig) ([]tool.BaseTool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mcp tools transport requires a url")
	}

	var (
		cli *client.Client
		err error
	)
	switch strings.ToLower(cfg.Transport) {
	case "sse":
		cli, err = client.NewSSEMCPClient(cfg.URL)
	default:
		cli, err = client.NewStreamableHttpClient(cfg.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	if err := cli.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    "api-support-chatbot",
		Version: "1.0.0",
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initialize mcp client: %w", err)
	}

	mcpTools, err := einomcp.GetTools(ctx, &einomcp.Config{Cli: cli})
	if err != nil {
		return nil, fmt.Errorf("discover mcp tools: %w", err)
	}

	logx.Debug().
		Str("url", cfg.URL).
		Str("transport", cfg.Transport).
		Int("tool_count", len(mcpTools)).
		Msg("Discovered MCP tools")

	return mcpTools, nil
}
