package nodes

import (
	"context"
	"fmt"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel replays a fixed sequence of replies and records every
// Generate call. When the script runs out the last reply repeats, which
// keeps concurrent fan-out tests deterministic.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	errs    []error
	cursor  int
	calls   [][]*schema.Message
}

var _ einomodel.ToolCallingChatModel = (*scriptedModel)(nil)

func newScriptedModel(replies ...*schema.Message) *scriptedModel {
	return &scriptedModel{replies: replies}
}

func (m *scriptedModel) failWith(errs ...error) *scriptedModel {
	m.errs = errs
	return m
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, in)
	i := m.cursor
	m.cursor++

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if len(m.replies) == 0 {
		return nil, fmt.Errorf("scripted model has no replies")
	}
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i], nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported by scripted model")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *scriptedModel) call(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

func testChatModels(extraction, response *scriptedModel) *ChatModels {
	return &ChatModels{
		Extraction:          extraction,
		Response:            response,
		ExtractionModelName: "test-extraction",
		ResponseModelName:   "test-response",
	}
}

func assistantJSON(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID: id,
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}
