package nodes

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/model"
)

func testPipelineConfig() model.PipelineConfig {
	return model.PipelineConfig{
		MaxClarificationAttempts: 3,
		MaxToolIterations:        2,
		MaxConcurrentItems:       5,
		MaxRequestItems:          3,
	}
}

func lastTurn(t *testing.T, state *model.PipelineState) *schema.Message {
	t.Helper()
	require.NotEmpty(t, state.Messages)
	return state.Messages[len(state.Messages)-1]
}

func TestRunExtractor_GreetsFreshThread(t *testing.T) {
	extraction := newScriptedModel()
	state := model.NewPipelineState("t1")

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), testPipelineConfig())
	require.NoError(t, err)

	assert.True(t, got.Halted())
	assert.Equal(t, prompts.GreetingMessage, lastTurn(t, got).Content)
	assert.Zero(t, extraction.callCount(), "greeting must not invoke the model")
}

func TestRunExtractor_GreetsAfterFinalTurn(t *testing.T) {
	extraction := newScriptedModel()
	state := model.NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("old question"))
	state.AppendTurn(model.FinalTurn("old answer"))

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), testPipelineConfig())
	require.NoError(t, err)

	assert.True(t, got.Halted())
	assert.Equal(t, prompts.GreetingMessage, lastTurn(t, got).Content)
}

func TestRunExtractor_ClarificationSuspendsCycle(t *testing.T) {
	extraction := newScriptedModel(assistantJSON(
		`{"valid_request_received": false, "clarifying_question": "Which product line do you use?"}`,
	))
	state := model.NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("my API calls fail"))

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), testPipelineConfig())
	require.NoError(t, err)

	assert.True(t, got.Halted())
	assert.Equal(t, 1, got.ClarificationAttempts)
	assert.Equal(t, "Which product line do you use?", lastTurn(t, got).Content)
}

func TestRunExtractor_InfoMessageDoesNotCountAsAttempt(t *testing.T) {
	extraction := newScriptedModel(assistantJSON(
		`{"valid_request_received": false, "info_message": "I can only help with Lightspeed API topics."}`,
	))
	state := model.NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("what's the weather?"))

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), testPipelineConfig())
	require.NoError(t, err)

	assert.True(t, got.Halted())
	assert.Zero(t, got.ClarificationAttempts)
	assert.Equal(t, "I can only help with Lightspeed API topics.", lastTurn(t, got).Content)
}

func TestRunExtractor_ValidRequestProceeds(t *testing.T) {
	extraction := newScriptedModel(assistantJSON(
		`{"valid_request_received": true, "product_id": "x-series"}`,
	))
	state := model.NewPipelineState("t1")
	state.ClarificationAttempts = 2
	state.AppendTurn(schema.UserMessage("how do I refresh an OAuth2 token?"))

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), testPipelineConfig())
	require.NoError(t, err)

	assert.False(t, got.Halted())
	require.NotNil(t, got.RequestDetails)
	assert.Equal(t, "x-series", got.RequestDetails.ProductID)
	assert.Zero(t, got.ClarificationAttempts)
	assert.Equal(t, prompts.WorkingMessage, lastTurn(t, got).Content)
}

func TestRunExtractor_ClarificationCeilingForcesProgression(t *testing.T) {
	extraction := newScriptedModel(assistantJSON(
		`{"valid_request_received": false, "clarifying_question": "Still unclear, which product?"}`,
	))
	cfg := testPipelineConfig()
	state := model.NewPipelineState("t1")
	state.ClarificationAttempts = cfg.MaxClarificationAttempts
	state.AppendTurn(schema.UserMessage("just help me"))

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), cfg)
	require.NoError(t, err)

	assert.False(t, got.Halted())
	assert.Equal(t, prompts.WorkingMessage, lastTurn(t, got).Content)
}

func TestRunExtractor_ModelFailureYieldsApologyTurn(t *testing.T) {
	extraction := newScriptedModel().failWith(fmt.Errorf("backend unavailable"))
	state := model.NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("help"))

	got, err := runExtractor(context.Background(), state, testChatModels(extraction, nil), testPipelineConfig())
	require.NoError(t, err)

	assert.True(t, got.Halted())
	assert.Contains(t, lastTurn(t, got).Content, prompts.GenericErrorMessage)
	assert.Contains(t, lastTurn(t, got).Content, "backend unavailable")
}

func TestExtractorBranch(t *testing.T) {
	branch := NewExtractorBranch()

	state := model.NewPipelineState("t1")
	next, err := branch(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, NodeCoordinator, next)

	state.Halt()
	next, err = branch(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, compose.END, next)
}
