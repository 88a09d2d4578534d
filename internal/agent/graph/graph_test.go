package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/api-support-chatbot/server/internal/agent/graph/nodes"
	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/graph/tools"
	"github.com/api-support-chatbot/server/internal/agent/model"
)

// memoryRepo checkpoints through a JSON round trip, matching what the Redis
// repository does to the state.
type memoryRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{data: map[string][]byte{}}
}

func (r *memoryRepo) LoadState(ctx context.Context, threadID string) (*model.PipelineState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.data[threadID]
	if !ok {
		return model.NewPipelineState(threadID), nil
	}
	var state model.PipelineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *memoryRepo) SaveState(ctx context.Context, state *model.PipelineState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[state.ThreadID] = raw
	return nil
}

func (r *memoryRepo) ClearState(ctx context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, threadID)
	return nil
}

// sequenceModel replays scripted replies in order; the last reply repeats.
type sequenceModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	cursor  int
}

var _ einomodel.ToolCallingChatModel = (*sequenceModel)(nil)

func (m *sequenceModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return nil, fmt.Errorf("sequence model has no replies")
	}
	i := m.cursor
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	m.cursor++
	return m.replies[i], nil
}

func (m *sequenceModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported by sequence model")
}

func (m *sequenceModel) WithTools(toolInfos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func reply(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

func testPipeline(t *testing.T, extraction, response *sequenceModel, repo model.StateRepository) *Pipeline {
	t.Helper()

	cfg := model.PipelineConfig{
		MaxClarificationAttempts: 3,
		MaxToolIterations:        2,
		MaxConcurrentItems:       5,
		MaxRequestItems:          3,
	}
	runnable, err := BuildGraph(context.Background(), &GraphConfig{
		ChatModels: &nodes.ChatModels{
			Extraction:          extraction,
			Response:            response,
			ExtractionModelName: "test-extraction",
			ResponseModelName:   "test-response",
		},
		ToolSet:  tools.GetSupportTools(),
		Pipeline: cfg,
	})
	require.NoError(t, err)
	return NewPipeline(runnable, repo, cfg)
}

const (
	validDetailsReply = `{"valid_request_received": true, "product_id": "x-series"}`
	singleItemReply   = `{"item_list": [{"request_text": "How do I refresh an OAuth2 token?", "category": "api_integration_support"}]}`
	answerReply       = `{"response_text": "The refresh_token is single use; request a new pair on every refresh.", "response_found": true, "confidence": 0.9}`
	assembledReply    = `{"response_text": "Refresh tokens are single use on X-Series.", "follow_up_question": "Is there anything else I can help you with?"}`
)

func TestPipeline_OpensThreadWithGreeting(t *testing.T) {
	repo := newMemoryRepo()
	p := testPipeline(t, &sequenceModel{}, &sequenceModel{}, repo)

	state, err := p.Invoke(context.Background(), "thread-1", "")
	require.NoError(t, err)

	require.Len(t, state.Messages, 1)
	assert.Equal(t, prompts.GreetingMessage, state.Messages[0].Content)

	// The greeting is checkpointed: a reload sees the same conversation.
	reloaded, err := repo.LoadState(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Len(t, reloaded.Messages, 1)
}

func TestPipeline_FullCycleSingleRequest(t *testing.T) {
	repo := newMemoryRepo()
	extraction := &sequenceModel{replies: []*schema.Message{
		reply(validDetailsReply),
		reply(singleItemReply),
		reply(assembledReply),
	}}
	response := &sequenceModel{replies: []*schema.Message{reply(answerReply)}}
	p := testPipeline(t, extraction, response, repo)

	state, err := p.Invoke(context.Background(), "thread-1", "How do I refresh an OAuth2 token on X-Series?")
	require.NoError(t, err)

	require.NotNil(t, state.AssembledResponse)
	assert.Equal(t, "Refresh tokens are single use on X-Series.", state.AssembledResponse.ResponseText)

	require.Len(t, state.RequestItems, 1)
	assert.Equal(t, "x-series", state.RequestItems[0].ProductID)
	require.Len(t, state.ResponseItems, 1)
	assert.True(t, state.ResponseItems[0].ResponseFound)

	final := state.Messages[len(state.Messages)-1]
	assert.True(t, model.IsFinalTurn(final))
	assert.Contains(t, final.Content, "Refresh tokens are single use on X-Series.")
	assert.Contains(t, final.Content, "Is there anything else I can help you with?")
}

func TestPipeline_ClarificationThenResolution(t *testing.T) {
	repo := newMemoryRepo()
	extraction := &sequenceModel{replies: []*schema.Message{
		reply(`{"valid_request_received": false, "clarifying_question": "Which product line are you integrating with?"}`),
		reply(validDetailsReply),
		reply(singleItemReply),
		reply(assembledReply),
	}}
	response := &sequenceModel{replies: []*schema.Message{reply(answerReply)}}
	p := testPipeline(t, extraction, response, repo)

	// First cycle suspends on the clarifying question.
	state, err := p.Invoke(context.Background(), "thread-1", "my token stopped working")
	require.NoError(t, err)
	assert.Equal(t, 1, state.ClarificationAttempts)
	assert.Equal(t, "Which product line are you integrating with?",
		state.Messages[len(state.Messages)-1].Content)
	assert.Nil(t, state.AssembledResponse)

	// Second cycle resumes the same thread and runs to assembly.
	state, err = p.Invoke(context.Background(), "thread-1", "X-Series")
	require.NoError(t, err)
	require.NotNil(t, state.AssembledResponse)
	assert.Zero(t, state.ClarificationAttempts)
	assert.True(t, model.IsFinalTurn(state.Messages[len(state.Messages)-1]))
	// Both cycles' turns are in one conversation.
	assert.GreaterOrEqual(t, len(state.Messages), 5)
}

func TestPipeline_StreamEmitsTurnsInOrder(t *testing.T) {
	repo := newMemoryRepo()
	extraction := &sequenceModel{replies: []*schema.Message{
		reply(validDetailsReply),
		reply(singleItemReply),
		reply(assembledReply),
	}}
	response := &sequenceModel{replies: []*schema.Message{reply(answerReply)}}
	p := testPipeline(t, extraction, response, repo)

	sr, err := p.Stream(context.Background(), "thread-1", "How do I refresh an OAuth2 token?")
	require.NoError(t, err)
	defer sr.Close()

	var turns []*schema.Message
	for {
		msg, recvErr := sr.Recv()
		if recvErr == io.EOF {
			break
		}
		require.NoError(t, recvErr)
		turns = append(turns, msg)
	}

	require.Len(t, turns, 3)
	assert.Equal(t, schema.User, turns[0].Role)
	assert.Equal(t, prompts.WorkingMessage, turns[1].Content)
	assert.True(t, model.IsFinalTurn(turns[2]))
}

func TestPipeline_RequiresThreadID(t *testing.T) {
	p := testPipeline(t, &sequenceModel{}, &sequenceModel{}, newMemoryRepo())

	_, err := p.Invoke(context.Background(), "  ", "hello")
	assert.Error(t, err)
}

func TestBuildGraph_Validation(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	assert.Error(t, err)

	_, err = BuildGraph(context.Background(), &GraphConfig{
		ChatModels: &nodes.ChatModels{},
		ToolSet:    tools.GetSupportTools(),
	})
	assert.Error(t, err)

	_, err = BuildGraph(context.Background(), &GraphConfig{
		ChatModels: &nodes.ChatModels{Extraction: &sequenceModel{}, Response: &sequenceModel{}},
		ToolSet:    nil,
	})
	assert.Error(t, err)
}
