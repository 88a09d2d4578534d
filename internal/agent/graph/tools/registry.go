package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

const (
	ToolRetrieveSupportContext = "retrieve_support_context"
	ToolReadmeFirst            = "readme_first"
)

// GetSupportTools returns the embedded local tool set.
func GetSupportTools() []tool.BaseTool {
	return []tool.BaseTool{
		createReadmeFirstTool(),
		createRetrieveSupportContextTool(),
	}
}

// NewToolSource resolves the configured tool source: the embedded local
// tools by default, or a discovered MCP tool set when the transport points
// at an MCP server.
func NewToolSource(ctx context.Context, cfg model.ToolsConfig) ([]tool.BaseTool, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "local":
		return GetSupportTools(), nil
	case "streamable_http", "sse":
		return getMCPTools(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported tools transport: %s", cfg.Transport)
	}
}

// GetToolInfos collects ToolInfo for every tool, for model binding.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("failed to get tool info")
			return nil, fmt.Errorf("get tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// IndexByName maps invokable tools by name for lookup during the
// responder's tool loop. Tools that cannot be invoked directly are skipped.
func IndexByName(ctx context.Context, tools []tool.BaseTool) (map[string]tool.InvokableTool, error) {
	index := make(map[string]tool.InvokableTool, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("get tool info: %w", err)
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			logx.Warn().Str("tool_name", info.Name).Msg("tool is not invokable, skipping")
			continue
		}
		index[info.Name] = inv
	}
	return index, nil
}
