package nodes

import (
	"context"
	"fmt"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/api-support-chatbot/server/internal/agent/graph/parsers"
	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/graph/tools"
	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// Responder answers one request item through a bounded tool-use loop. A
// single Responder is shared by all fan-out branches; it holds no per-item
// state.
type Responder struct {
	base      einomodel.ToolCallingChatModel
	toolModel einomodel.ToolCallingChatModel
	toolIndex map[string]tool.InvokableTool
	maxLoops  int
}

// NewResponder binds the discovered tools to the response model and indexes
// them for lookup during the loop.
func NewResponder(ctx context.Context, cm *ChatModels, toolSet []tool.BaseTool, cfg model.PipelineConfig) (*Responder, error) {
	infos, err := tools.GetToolInfos(ctx, toolSet)
	if err != nil {
		return nil, fmt.Errorf("collect tool infos: %w", err)
	}
	index, err := tools.IndexByName(ctx, toolSet)
	if err != nil {
		return nil, fmt.Errorf("index tools: %w", err)
	}

	toolModel, err := cm.Response.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("bind tools to response model: %w", err)
	}

	return &Responder{
		base:      cm.Response,
		toolModel: toolModel,
		toolIndex: index,
		maxLoops:  normalizeLimit(cfg.MaxToolIterations, 2),
	}, nil
}

// Respond produces exactly one ResponseItem for the item, using the error
// path when anything goes wrong. It never returns an error: a failed branch
// still counts as completed for the fan-in barrier.
func (r *Responder) Respond(ctx context.Context, item model.RequestItem) model.ResponseItem {
	answer, err := r.generate(ctx, item)
	if err != nil {
		errText := formatError(fmt.Sprintf("generate_response for item %s", item.ID), err)
		logx.Error().
			Err(err).
			Str("request_id", item.ID).
			Msg("Responder failed")
		return model.ResponseItem{
			RequestID:    item.ID,
			RequestText:  item.RequestText,
			ProductID:    item.ProductID,
			ResponseText: fmt.Sprintf("%s %s", prompts.GenericErrorMessage, errText),
			Error:        true,
		}
	}

	logx.Debug().
		Str("request_id", item.ID).
		Bool("response_found", answer.ResponseFound).
		Float64("confidence", answer.Confidence).
		Msg("Generated response for request item")

	return model.ResponseItem{
		RequestID:     item.ID,
		RequestText:   item.RequestText,
		ProductID:     item.ProductID,
		ResponseText:  answer.ResponseText,
		ResponseFound: answer.ResponseFound,
		Confidence:    model.ClampConfidence(answer.Confidence),
	}
}

func (r *Responder) generate(ctx context.Context, item model.RequestItem) (model.ResponderAnswer, error) {
	systemPrompt, err := prompts.RenderResponderSystem(ctx)
	if err != nil {
		return model.ResponderAnswer{}, err
	}

	userPrompt := fmt.Sprintf(
		"Request Text: %s\nProduct ID: %s\nRequest Category: %s",
		item.RequestText, item.ProductID, item.Category,
	)
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	var final *schema.Message
	for iteration := 0; iteration < r.maxLoops; iteration++ {
		resp, err := r.toolModel.Generate(ctx, messages)
		if err != nil {
			return model.ResponderAnswer{}, fmt.Errorf("model invocation: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			final = resp
			break
		}

		messages = append(messages, resp)
		for _, call := range resp.ToolCalls {
			messages = append(messages, r.executeToolCall(ctx, call))
		}
	}

	// Loop ceiling reached without a textual answer: force one with a
	// tool-free call.
	if final == nil {
		final, err = r.base.Generate(ctx, messages)
		if err != nil {
			return model.ResponderAnswer{}, fmt.Errorf("forced final invocation: %w", err)
		}
	}

	return parsers.DecodeResponderAnswer(final.Content), nil
}

// executeToolCall runs one tool call and always yields a tool turn; lookup
// and execution failures become tool-result text so the loop keeps going.
func (r *Responder) executeToolCall(ctx context.Context, call schema.ToolCall) *schema.Message {
	name := call.Function.Name
	t, ok := r.toolIndex[name]
	if !ok {
		logx.Warn().Str("tool_name", name).Msg("Tool not found")
		return schema.ToolMessage(fmt.Sprintf("Tool %s not found", name), call.ID)
	}

	out, err := t.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		logx.Warn().Err(err).Str("tool_name", name).Msg("Tool execution failed")
		return schema.ToolMessage(fmt.Sprintf("Tool execution failed: %v", err), call.ID)
	}
	return schema.ToolMessage(out, call.ID)
}

// NewResponderNode creates the fan-out stage: one independent Respond call
// per request item, concurrency-capped, merged over a channel behind a
// wait-group barrier. The assembler only runs after every branch has
// contributed its item.
func NewResponderNode(responder *Responder, cfg model.PipelineConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.PipelineState) (*model.PipelineState, error) {
		return runFanOut(ctx, state, responder, cfg)
	})
}

func runFanOut(ctx context.Context, state *model.PipelineState, responder *Responder, cfg model.PipelineConfig) (*model.PipelineState, error) {
	items := state.RequestItems
	if len(items) == 0 {
		return nil, fmt.Errorf("fan-out dispatched with no request items")
	}

	maxConcurrent := normalizeLimit(cfg.MaxConcurrentItems, 5)
	results := make(chan model.ResponseItem, len(items))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(it model.RequestItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- responder.Respond(ctx, it)
		}(item)
	}

	wg.Wait()
	close(results)

	for res := range results {
		state.ResponseItems = append(state.ResponseItems, res)
	}

	if len(state.ResponseItems) != len(items) {
		return nil, fmt.Errorf("fan-in mismatch: %d items, %d responses", len(items), len(state.ResponseItems))
	}

	logx.Debug().
		Str("thread_id", state.ThreadID).
		Int("response_count", len(state.ResponseItems)).
		Msg("All responder branches completed")

	return state, nil
}
