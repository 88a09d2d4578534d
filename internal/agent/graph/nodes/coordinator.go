package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/api-support-chatbot/server/internal/agent/graph/parsers"
	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// newRequestID returns a short unique id for a request item.
func newRequestID() string {
	return uuid.NewString()[:8]
}

// NewCoordinatorNode creates the second pipeline stage. It decomposes the
// validated request into independent sub-items, each tagged with category
// and product, and assigns every item a fresh id regardless of what the
// model returned.
func NewCoordinatorNode(cm *ChatModels, cfg model.PipelineConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.PipelineState) (*model.PipelineState, error) {
		return runCoordinator(ctx, state, cm, cfg)
	})
}

func runCoordinator(ctx context.Context, state *model.PipelineState, cm *ChatModels, cfg model.PipelineConfig) (*model.PipelineState, error) {
	if state.RequestDetails == nil {
		appendFailureTurn(state, "coordinate_response", fmt.Errorf("no request details available for coordination"))
		return state, nil
	}

	systemPrompt, err := prompts.RenderCoordinatorSystem(ctx)
	if err != nil {
		appendFailureTurn(state, "coordinate_response", err)
		return state, nil
	}

	historical, current := state.SplitAtLastFinal()
	conversation := prompts.FormatConversationContext(historical, current)

	out, err := cm.Extraction.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(conversation),
	})
	if err != nil {
		appendFailureTurn(state, "coordinate_response", err)
		return state, nil
	}

	extracted, err := parsers.DecodeRequestItems(out.Content)
	if err != nil {
		appendFailureTurn(state, "coordinate_response", err)
		return state, nil
	}

	items := extracted.ItemList
	if len(items) == 0 {
		// Not an internal failure: ask the customer to rephrase.
		logx.Debug().Str("thread_id", state.ThreadID).Msg("Coordination yielded no request items")
		state.AppendTurn(schema.AssistantMessage(prompts.CouldNotIdentifyMessage, nil))
		state.Halt()
		return state, nil
	}

	maxItems := normalizeLimit(cfg.MaxRequestItems, 3)
	if len(items) > maxItems {
		logx.Warn().
			Str("thread_id", state.ThreadID).
			Int("item_count", len(items)).
			Int("max_items", maxItems).
			Msg("Coordination exceeded item cap, truncating")
		items = items[:maxItems]
	}

	// Model-proposed ids are discarded; the coordinator owns identity.
	for i := range items {
		items[i].ID = newRequestID()
		if items[i].ProductID == "" {
			items[i].ProductID = state.RequestDetails.ProductID
		}
	}
	state.RequestItems = items

	logx.Debug().
		Str("thread_id", state.ThreadID).
		Int("item_count", len(items)).
		Msg("Delegating to response agents")

	return state, nil
}

// NewCoordinatorBranch routes to the responder fan-out unless the
// coordinator terminated the cycle.
func NewCoordinatorBranch() func(context.Context, *model.PipelineState) (string, error) {
	return func(ctx context.Context, state *model.PipelineState) (string, error) {
		if state.Halted() {
			return compose.END, nil
		}
		return NodeResponder, nil
	}
}
