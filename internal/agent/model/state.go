package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// finalResponseKey marks an assistant turn as the assembled final answer of
// a cycle. The extractor uses it to split history on the next cycle.
const finalResponseKey = "final_response"

// PipelineState is the aggregate threaded through every pipeline stage for
// one conversation thread.
//
// Concurrency model:
//   - One cycle processes one thread at a time; stages run sequentially and
//     mutate the state only from their own node.
//   - The responder fan-out never touches the state from its branches; each
//     branch returns a single ResponseItem over a channel and the dispatcher
//     merges them after the barrier.
//   - Persistence between cycles goes through a StateRepository; the state
//     itself is plain data and JSON-serializable.
type PipelineState struct {
	ThreadID string `json:"thread_id"`

	// Messages is append-only. Turns are never mutated after creation
	// except for the final-response marker set by the assembler.
	Messages []*schema.Message `json:"messages"`

	ClarificationAttempts int `json:"clarification_attempts"`

	RequestDetails    *RequestDetails    `json:"request_details,omitempty"`
	RequestItems      []RequestItem      `json:"request_items"`
	ResponseItems     []ResponseItem     `json:"response_items"`
	AssembledResponse *AssembledResponse `json:"assembled_response,omitempty"`

	// halted flags early cycle termination (clarification, greeting, or a
	// stage-local failure already converted into a customer-facing turn).
	// Per-cycle control only, never persisted.
	halted bool

	// sink receives every appended turn; used by the streaming entry point.
	sink func(*schema.Message)
}

// NewPipelineState returns a fresh state for a new conversation thread.
func NewPipelineState(threadID string) *PipelineState {
	return &PipelineState{
		ThreadID:      threadID,
		Messages:      []*schema.Message{},
		RequestItems:  []RequestItem{},
		ResponseItems: []ResponseItem{},
	}
}

// SetTurnSink installs a hook invoked for every turn appended during the
// current cycle. Pass nil to remove it.
func (s *PipelineState) SetTurnSink(fn func(*schema.Message)) {
	s.sink = fn
}

// AppendTurn appends a turn to the conversation and forwards it to the turn
// sink when one is installed.
func (s *PipelineState) AppendTurn(msg *schema.Message) {
	if msg == nil {
		return
	}
	s.Messages = append(s.Messages, msg)
	if s.sink != nil {
		s.sink(msg)
	}
}

// Halt marks the current cycle as terminated before full assembly.
func (s *PipelineState) Halt() {
	s.halted = true
}

// Halted reports whether the current cycle terminated early.
func (s *PipelineState) Halted() bool {
	return s.halted
}

// ResetCycle clears the per-cycle control flags before a new cycle runs.
func (s *PipelineState) ResetCycle() {
	s.halted = false
}

// BeginCoordination resets the per-request collections at the start of a new
// coordination cycle, once the extractor validated the request.
func (s *PipelineState) BeginCoordination(details *RequestDetails) {
	s.RequestDetails = details
	s.ClarificationAttempts = 0
	s.RequestItems = []RequestItem{}
	s.ResponseItems = []ResponseItem{}
	s.AssembledResponse = nil
}

// FinalTurn builds an assistant turn carrying the final-response marker.
func FinalTurn(content string) *schema.Message {
	msg := schema.AssistantMessage(content, nil)
	msg.Extra = map[string]any{finalResponseKey: true}
	return msg
}

// IsFinalTurn reports whether the turn carries the final-response marker.
// The marker survives a JSON round trip through the checkpoint store, so the
// value is checked loosely.
func IsFinalTurn(msg *schema.Message) bool {
	if msg == nil || msg.Extra == nil {
		return false
	}
	v, ok := msg.Extra[finalResponseKey]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// SplitAtLastFinal partitions the conversation into the historical segment
// (everything up to and including the last final-marked turn) and the
// current segment (everything after it). With no final turn present, the
// whole conversation is current.
func (s *PipelineState) SplitAtLastFinal() (historical, current []*schema.Message) {
	lastFinal := -1
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if IsFinalTurn(s.Messages[i]) {
			lastFinal = i
			break
		}
	}
	if lastFinal == -1 {
		return nil, s.Messages
	}
	return s.Messages[:lastFinal+1], s.Messages[lastFinal+1:]
}

// HasUserTurn reports whether the segment contains at least one customer
// turn with non-empty content.
func HasUserTurn(segment []*schema.Message) bool {
	for _, msg := range segment {
		if msg != nil && msg.Role == schema.User && msg.Content != "" {
			return true
		}
	}
	return false
}

// StateRepository persists pipeline state between cycles, keyed by thread
// id. The pipeline itself is stateless between invocations beyond what the
// repository returns.
type StateRepository interface {
	// LoadState returns the checkpointed state for the thread, or a fresh
	// state when none exists yet.
	LoadState(ctx context.Context, threadID string) (*PipelineState, error)

	// SaveState checkpoints the full state for the thread.
	SaveState(ctx context.Context, state *PipelineState) error

	// ClearState removes the checkpoint for the thread.
	ClearState(ctx context.Context, threadID string) error
}
