package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// newToolHandler builds a typed ToolCallbackHandler logging tool lifecycle
// events.
func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			args := ""
			if input != nil {
				args = input.ArgumentsInJSON
			}
			logx.Debug().
				Str("tool_name", info.Name).
				Str("arguments", args).
				Msg("Tool call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			size := 0
			if output != nil {
				size = len(output.Response)
			}
			logx.Debug().
				Str("tool_name", info.Name).
				Int("response_len", size).
				Msg("Tool call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().
				Err(err).
				Str("tool_name", info.Name).
				Msg("Tool call failed")
			return ctx
		},
	}
}
