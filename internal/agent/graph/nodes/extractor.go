package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/api-support-chatbot/server/internal/agent/graph/parsers"
	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// NewExtractorNode creates the first pipeline stage. It decides whether the
// current conversation segment holds a complete, in-scope request, asks for
// clarification when it does not, and otherwise clears the per-request
// collections and lets the cycle advance to coordination.
func NewExtractorNode(cm *ChatModels, cfg model.PipelineConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.PipelineState) (*model.PipelineState, error) {
		return runExtractor(ctx, state, cm, cfg)
	})
}

func runExtractor(ctx context.Context, state *model.PipelineState, cm *ChatModels, cfg model.PipelineConfig) (*model.PipelineState, error) {
	historical, current := state.SplitAtLastFinal()

	// A segment without a customer turn means a freshly opened thread:
	// greet and wait for input.
	if !model.HasUserTurn(current) {
		logx.Debug().Str("thread_id", state.ThreadID).Msg("No customer turn yet, greeting")
		state.AppendTurn(schema.AssistantMessage(prompts.GreetingMessage, nil))
		state.Halt()
		return state, nil
	}

	systemPrompt, err := prompts.RenderExtractorSystem(ctx)
	if err != nil {
		appendFailureTurn(state, "get_request_details", err)
		return state, nil
	}

	conversation := prompts.FormatConversationContext(historical, current)
	out, err := cm.Extraction.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(conversation),
	})
	if err != nil {
		appendFailureTurn(state, "get_request_details", err)
		return state, nil
	}

	details, err := parsers.DecodeRequestDetails(out.Content)
	if err != nil {
		appendFailureTurn(state, "get_request_details", err)
		return state, nil
	}
	state.RequestDetails = details

	logx.Debug().
		Str("thread_id", state.ThreadID).
		Bool("valid_request", details.ValidRequestReceived).
		Str("product_id", details.ProductID).
		Int("clarification_attempts", state.ClarificationAttempts).
		Msg("Completed request-detail extraction")

	if !details.ValidRequestReceived && state.ClarificationAttempts < cfg.MaxClarificationAttempts {
		// Ask for clarification and suspend until the next customer turn.
		if details.ClarifyingQuestion != "" {
			state.ClarificationAttempts++
		}
		state.AppendTurn(schema.AssistantMessage(details.CustomerText(), nil))
		state.Halt()
		return state, nil
	}

	// Valid request, or clarification budget exhausted: proceed.
	state.BeginCoordination(details)
	state.AppendTurn(schema.AssistantMessage(prompts.WorkingMessage, nil))
	return state, nil
}

// NewExtractorBranch routes to coordination unless the extractor terminated
// the cycle.
func NewExtractorBranch() func(context.Context, *model.PipelineState) (string, error) {
	return func(ctx context.Context, state *model.PipelineState) (string, error) {
		if state.Halted() {
			return compose.END, nil
		}
		return NodeCoordinator, nil
	}
}
