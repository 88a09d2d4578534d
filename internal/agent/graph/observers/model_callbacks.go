package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// newModelHandler builds a typed ModelCallbackHandler logging model call
// lifecycle and token usage cost.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *einomodel.CallbackInput) context.Context {
			messageCount := 0
			if input != nil {
				messageCount = len(input.Messages)
			}
			logx.Debug().
				Str("node", info.Name).
				Int("message_count", messageCount).
				Msg("Model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *einomodel.CallbackOutput) context.Context {
			evt := logx.Debug().Str("node", info.Name)

			if output != nil && output.Message != nil {
				evt = evt.
					Int("content_len", len(output.Message.Content)).
					Int("tool_calls", len(output.Message.ToolCalls))

				if meta := output.Message.ResponseMeta; meta != nil && meta.Usage != nil {
					modelName := ""
					if output.Config != nil {
						modelName = output.Config.Model
					}
					pricing := model.ResolvePricing(modelName)
					inC, outC, totalC := model.ComputeCost(meta.Usage, pricing)
					evt = evt.
						Str("model", modelName).
						Int("prompt_tokens", meta.Usage.PromptTokens).
						Int("completion_tokens", meta.Usage.CompletionTokens).
						Int("total_tokens", meta.Usage.TotalTokens).
						Float64("input_cost_usd", inC).
						Float64("output_cost_usd", outC).
						Float64("total_cost_usd", totalC)
				}
			}

			evt.Msg("Model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().
				Err(err).
				Str("node", info.Name).
				Msg("Model call failed")
			return ctx
		},
	}
}
