package model

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAtLastFinal_NoFinalTurn(t *testing.T) {
	state := NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("hello"))
	state.AppendTurn(schema.AssistantMessage("hi, what do you need?", nil))

	historical, current := state.SplitAtLastFinal()

	assert.Empty(t, historical)
	assert.Len(t, current, 2)
}

func TestSplitAtLastFinal_PartitionsAtMarker(t *testing.T) {
	state := NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("how do webhooks work?"))
	state.AppendTurn(FinalTurn("webhooks work like this"))
	state.AppendTurn(schema.UserMessage("and what about rate limits?"))

	historical, current := state.SplitAtLastFinal()

	require.Len(t, historical, 2)
	require.Len(t, current, 1)
	assert.True(t, IsFinalTurn(historical[1]))
	assert.Equal(t, "and what about rate limits?", current[0].Content)
}

func TestSplitAtLastFinal_Idempotent(t *testing.T) {
	state := NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("a"))
	state.AppendTurn(FinalTurn("b"))
	state.AppendTurn(schema.UserMessage("c"))

	h1, c1 := state.SplitAtLastFinal()
	h2, c2 := state.SplitAtLastFinal()

	assert.Equal(t, h1, h2)
	assert.Equal(t, c1, c2)
}

func TestIsFinalTurn_SurvivesCheckpointRoundTrip(t *testing.T) {
	state := NewPipelineState("t1")
	state.AppendTurn(schema.UserMessage("q"))
	state.AppendTurn(FinalTurn("a"))

	b, err := json.Marshal(state)
	require.NoError(t, err)

	var restored PipelineState
	require.NoError(t, json.Unmarshal(b, &restored))

	require.Len(t, restored.Messages, 2)
	assert.False(t, IsFinalTurn(restored.Messages[0]))
	assert.True(t, IsFinalTurn(restored.Messages[1]))
}

func TestAppendTurn_ForwardsToSink(t *testing.T) {
	state := NewPipelineState("t1")

	var seen []*schema.Message
	state.SetTurnSink(func(msg *schema.Message) { seen = append(seen, msg) })

	state.AppendTurn(schema.UserMessage("one"))
	state.AppendTurn(nil)
	state.AppendTurn(schema.AssistantMessage("two", nil))

	require.Len(t, seen, 2)
	assert.Equal(t, "one", seen[0].Content)
	assert.Equal(t, "two", seen[1].Content)

	state.SetTurnSink(nil)
	state.AppendTurn(schema.UserMessage("three"))
	assert.Len(t, seen, 2)
	assert.Len(t, state.Messages, 3)
}

func TestBeginCoordination_ResetsPerRequestCollections(t *testing.T) {
	state := NewPipelineState("t1")
	state.ClarificationAttempts = 2
	state.RequestItems = []RequestItem{{ID: "old"}}
	state.ResponseItems = []ResponseItem{{RequestID: "old"}}
	state.AssembledResponse = &AssembledResponse{ResponseText: "old"}

	details := &RequestDetails{ValidRequestReceived: true, ProductID: "x-series"}
	state.BeginCoordination(details)

	assert.Equal(t, 0, state.ClarificationAttempts)
	assert.Empty(t, state.RequestItems)
	assert.Empty(t, state.ResponseItems)
	assert.Nil(t, state.AssembledResponse)
	assert.Equal(t, details, state.RequestDetails)
}

func TestHaltResetCycle(t *testing.T) {
	state := NewPipelineState("t1")
	assert.False(t, state.Halted())

	state.Halt()
	assert.True(t, state.Halted())

	state.ResetCycle()
	assert.False(t, state.Halted())
}

func TestHasUserTurn(t *testing.T) {
	assert.False(t, HasUserTurn(nil))
	assert.False(t, HasUserTurn([]*schema.Message{schema.AssistantMessage("hi", nil)}))
	assert.False(t, HasUserTurn([]*schema.Message{{Role: schema.User, Content: ""}}))
	assert.True(t, HasUserTurn([]*schema.Message{schema.UserMessage("hello")}))
}
