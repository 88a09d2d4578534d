package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// ===================================
// Readme First Tool
// ===================================

type ReadmeFirstInput struct {
	Topic string `json:"topic,omitempty"`
}

type ReadmeFirstOutput struct {
	Overview string `json:"overview"`
}

const readmeOverview = `Available capabilities:
- retrieve_support_context: retrieves documentation excerpts and resolved
  ticket summaries for a specific API question. Provide request_text, the
  product ID (c-series or x-series) when known, and search ("docs",
  "tickets", or "all").
Coverage: authentication, rate limits, webhooks, sandbox environments and
integration lifecycle for the Lightspeed eCom product lines. Information
outside the retrieved context should be flagged as unverified.`

func createReadmeFirstTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolReadmeFirst,
			Desc: "Get instructions and an overview of the available support capabilities. Call this before other tools.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"topic": {
					Type: "string",
					Desc: "Optional topic to focus the overview on.",
				},
			}),
		},
		func(ctx context.Context, in *ReadmeFirstInput) (*ReadmeFirstOutput, error) {
			return &ReadmeFirstOutput{Overview: readmeOverview}, nil
		},
	)
}
