package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// newPromptHandler builds a typed PromptCallbackHandler logging prompt
// rendering events.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *prompt.CallbackInput) context.Context {
			vars := 0
			if input != nil {
				vars = len(input.Variables)
			}
			logx.Debug().
				Str("prompt", info.Name).
				Int("variable_count", vars).
				Msg("Prompt render start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			rendered := 0
			if output != nil {
				rendered = len(output.Result)
			}
			logx.Debug().
				Str("prompt", info.Name).
				Int("message_count", rendered).
				Msg("Prompt render end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().
				Err(err).
				Str("prompt", info.Name).
				Msg("Prompt render failed")
			return ctx
		},
	}
}
