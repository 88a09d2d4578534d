package nodes

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// Node names used when wiring the pipeline graph.
const (
	NodeExtractor   = "ExtractRequestDetails"
	NodeCoordinator = "CoordinateResponse"
	NodeResponder   = "GenerateResponses"
	NodeAssembler   = "AssembleFinalResponse"
)

// ===== Small helpers shared by the stage nodes =====

// formatError renders an internal error for the operator-visible part of a
// failure turn.
func formatError(stage string, err error) string {
	return fmt.Sprintf("%s: %v", stage, err)
}

// appendFailureTurn converts a stage-local error into a generic apologetic
// customer turn and terminates the cycle. The conversation stays resumable
// on the next customer turn.
func appendFailureTurn(state *model.PipelineState, stage string, err error) {
	logx.Error().
		Err(err).
		Str("thread_id", state.ThreadID).
		Str("stage", stage).
		Msg("Stage failed, terminating cycle")

	content := fmt.Sprintf("%s %s", prompts.GenericErrorMessage, formatError(stage, err))
	state.AppendTurn(schema.AssistantMessage(content, nil))
	state.Halt()
}

// normalizeLimit returns fallback when the provided limit is not positive.
func normalizeLimit(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
