package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/api-support-chatbot/server/internal/agent/graph/parsers"
	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

const couldNotAnswerPlaceholder = "Could not answer the request"

// NewAssemblerNode creates the final stage. It merges all per-item answers
// into one customer-facing turn carrying the final-response marker. Any
// errored response item fails the whole turn; the customer then gets the
// generic apology instead of a partial answer.
func NewAssemblerNode(cm *ChatModels) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.PipelineState) (*model.PipelineState, error) {
		return runAssembler(ctx, state, cm)
	})
}

func runAssembler(ctx context.Context, state *model.PipelineState, cm *ChatModels) (*model.PipelineState, error) {
	assembled, err := assemble(ctx, cm, state.ResponseItems)
	if err != nil {
		// Fallback apology, no final marker: the next cycle still sees
		// this exchange as unresolved.
		appendFailureTurn(state, "assemble_final_response", err)
		return state, nil
	}

	state.AssembledResponse = assembled

	content := assembled.ResponseText
	if assembled.FollowUpQuestion != "" {
		content = fmt.Sprintf("%s\n\n%s", assembled.ResponseText, assembled.FollowUpQuestion)
	}
	state.AppendTurn(model.FinalTurn(content))

	logx.Debug().
		Str("thread_id", state.ThreadID).
		Int("response_items", len(state.ResponseItems)).
		Msg("Completed final response assembly")

	return state, nil
}

func assemble(ctx context.Context, cm *ChatModels, items []model.ResponseItem) (*model.AssembledResponse, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no response items to assemble")
	}

	var qaPairs strings.Builder
	for _, item := range items {
		if item.Error {
			return nil, fmt.Errorf("%s", item.ResponseText)
		}

		responseText := item.ResponseText
		if !item.ResponseFound || responseText == "" {
			responseText = couldNotAnswerPlaceholder
		}

		fmt.Fprintf(&qaPairs, "<REQUEST TEXT. PRODUCT ID=%s>\n%s\n</REQUEST TEXT>\n\n",
			item.ProductID, item.RequestText)
		fmt.Fprintf(&qaPairs, "<GENERATED RESPONSE. CONFIDENCE=%.2f>\n%s\n</GENERATED RESPONSE>\n\n",
			model.ClampConfidence(item.Confidence), responseText)
	}

	systemPrompt, err := prompts.RenderAssemblerSystem(ctx)
	if err != nil {
		return nil, err
	}

	out, err := cm.Extraction.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(qaPairs.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("model invocation: %w", err)
	}

	return parsers.DecodeAssembledResponse(out.Content)
}
