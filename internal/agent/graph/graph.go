package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/api-support-chatbot/server/internal/agent/graph/nodes"
	"github.com/api-support-chatbot/server/internal/agent/graph/observers"
	"github.com/api-support-chatbot/server/internal/agent/graph/prompts"
	"github.com/api-support-chatbot/server/internal/agent/graph/tools"
	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// Config holds everything needed to compose the full support pipeline
// end-to-end. This is a convenience layer over GraphConfig that also
// constructs the chat models and discovers the tool set.
type Config struct {
	Provider        model.ProviderConfig
	ExtractionModel model.ExtractionModelConfig
	ResponseModel   model.ResponseModelConfig
	Pipeline        model.PipelineConfig
	Tools           model.ToolsConfig
	StateRepo       model.StateRepository
}

// GraphConfig holds all configuration needed to build the pipeline graph.
type GraphConfig struct {
	ChatModels *nodes.ChatModels
	ToolSet    []tool.BaseTool
	Pipeline   model.PipelineConfig
}

// GraphBuilder handles the construction of the support pipeline graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.PipelineState, *model.PipelineState]
}

// Pipeline runs one cycle per customer turn against the compiled graph,
// loading and checkpointing the conversation state around each run.
type Pipeline struct {
	runnable compose.Runnable[*model.PipelineState, *model.PipelineState]
	repo     model.StateRepository
	cfg      model.PipelineConfig
}

// BuildSupportPipeline composes chat models, tool set and graph, and
// returns a ready Pipeline.
func BuildSupportPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.StateRepo == nil {
		return nil, fmt.Errorf("state repository is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Provider:         cfg.Provider,
		ExtractionConfig: &cfg.ExtractionModel,
		ResponseConfig:   &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	toolSet, err := tools.NewToolSource(ctx, cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("resolve tool source: %w", err)
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels: cms,
		ToolSet:    toolSet,
		Pipeline:   cfg.Pipeline,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Support pipeline built successfully")
	return NewPipeline(runnable, cfg.StateRepo, cfg.Pipeline), nil
}

// NewPipeline wraps a compiled graph with state checkpointing.
func NewPipeline(
	runnable compose.Runnable[*model.PipelineState, *model.PipelineState],
	repo model.StateRepository,
	cfg model.PipelineConfig,
) *Pipeline {
	return &Pipeline{runnable: runnable, repo: repo, cfg: cfg}
}

// BuildGraph constructs and compiles the support pipeline graph:
// extractor → (end | coordinator) → (end | responder fan-out) →
// assembler → end.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.PipelineState, *model.PipelineState], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Extraction == nil || config.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if len(config.ToolSet) == 0 {
		return nil, fmt.Errorf("tool set is empty")
	}

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[*model.PipelineState, *model.PipelineState](),
	}

	if err := builder.addNodes(ctx); err != nil {
		return nil, err
	}
	builder.addEdges()
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing stages to the graph.
func (b *GraphBuilder) addNodes(ctx context.Context) error {
	responder, err := nodes.NewResponder(ctx, b.config.ChatModels, b.config.ToolSet, b.config.Pipeline)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to build responder")
		return fmt.Errorf("build responder: %w", err)
	}

	b.graph.AddLambdaNode(nodes.NodeExtractor,
		nodes.NewExtractorNode(b.config.ChatModels, b.config.Pipeline))

	b.graph.AddLambdaNode(nodes.NodeCoordinator,
		nodes.NewCoordinatorNode(b.config.ChatModels, b.config.Pipeline))

	b.graph.AddLambdaNode(nodes.NodeResponder,
		nodes.NewResponderNode(responder, b.config.Pipeline))

	b.graph.AddLambdaNode(nodes.NodeAssembler,
		nodes.NewAssemblerNode(b.config.ChatModels))

	return nil
}

// addEdges creates the unconditional flow connections.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeExtractor},
		{nodes.NodeResponder, nodes.NodeAssembler},
		{nodes.NodeAssembler, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the conditional routing after extraction and
// coordination, both of which may terminate the cycle early.
func (b *GraphBuilder) addBranches() error {
	extractorBranch := compose.NewGraphBranch(
		nodes.NewExtractorBranch(),
		map[string]bool{
			nodes.NodeCoordinator: true,
			compose.END:           true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeExtractor, extractorBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding extractor branch")
		return fmt.Errorf("error adding extractor branch: %w", err)
	}

	coordinatorBranch := compose.NewGraphBranch(
		nodes.NewCoordinatorBranch(),
		map[string]bool{
			nodes.NodeResponder: true,
			compose.END:         true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeCoordinator, coordinatorBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding coordinator branch")
		return fmt.Errorf("error adding coordinator branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.PipelineState, *model.PipelineState], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// Invoke runs exactly one pipeline cycle for the thread, synchronously,
// through early exit or full assembly, and returns the updated state.
// An empty customer message opens the thread without a customer turn, which
// makes the extractor greet instead of analyze.
func (p *Pipeline) Invoke(ctx context.Context, threadID, customerMessage string) (*model.PipelineState, error) {
	return p.runCycle(ctx, threadID, customerMessage, nil)
}

// Stream runs the same cycle as Invoke, emitting each turn as it is
// appended. The reader yields the cycle's new turns and then closes; a
// cycle-level failure surfaces as the reader's error.
func (p *Pipeline) Stream(ctx context.Context, threadID, customerMessage string) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](8)

	go func() {
		defer sw.Close()
		_, err := p.runCycle(ctx, threadID, customerMessage, func(msg *schema.Message) {
			sw.Send(msg, nil)
		})
		if err != nil {
			sw.Send(nil, err)
		}
	}()

	return sr, nil
}

func (p *Pipeline) runCycle(ctx context.Context, threadID, customerMessage string, sink func(*schema.Message)) (*model.PipelineState, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("thread id is required")
	}

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.RequestTimeout)*time.Second)
		defer cancel()
	}

	state, err := p.repo.LoadState(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state.ResetCycle()
	state.SetTurnSink(sink)
	defer state.SetTurnSink(nil)

	if strings.TrimSpace(customerMessage) != "" {
		state.AppendTurn(schema.UserMessage(customerMessage))
	}

	out, err := p.runnable.Invoke(ctx, state, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		// Unexpected runtime failure: degrade to the generic apology and
		// keep the thread resumable.
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Pipeline cycle failed")
		state.AppendTurn(schema.AssistantMessage(prompts.GenericErrorMessage, nil))
		if saveErr := p.repo.SaveState(ctx, state); saveErr != nil {
			logx.Error().Err(saveErr).Str("thread_id", threadID).Msg("Failed to checkpoint state after cycle failure")
		}
		return state, err
	}

	if err := p.repo.SaveState(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}
