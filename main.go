package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/api-support-chatbot/server/internal/agent/graph"
	"github.com/api-support-chatbot/server/internal/agent/model"
	"github.com/api-support-chatbot/server/internal/agent/repo"
	"github.com/api-support-chatbot/server/internal/core"
	logx "github.com/api-support-chatbot/server/pkg/logger"
	pkgredis "github.com/api-support-chatbot/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the support chatbot,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider and models
	Provider   model.ProviderConfig
	Extraction model.ExtractionModelConfig
	Response   model.ResponseModelConfig

	// Pipeline behavior
	Pipeline model.PipelineConfig
	Tools    model.ToolsConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	logx.Info().Msg("Connected to Redis")

	ttl, err := time.ParseDuration(envCfg.Pipeline.SessionTTL)
	if err != nil {
		log.Fatalf("Invalid SESSION_TTL '%s': %v", envCfg.Pipeline.SessionTTL, err)
	}

	pipeline, err := graph.BuildSupportPipeline(ctx, graph.Config{
		Provider:        envCfg.Provider,
		ExtractionModel: envCfg.Extraction,
		ResponseModel:   envCfg.Response,
		Pipeline:        envCfg.Pipeline,
		Tools:           envCfg.Tools,
		StateRepo:       repo.NewRedisStateRepository(rdb, ttl),
	})
	if err != nil {
		log.Fatalf("Failed to build support pipeline: %v", err)
	}

	threadID := "demo-thread-001"

	testTurns := []struct {
		description string
		message     string
	}{
		{
			description: "Open the thread",
			message:     "",
		},
		{
			description: "OAuth2 authentication question",
			message:     "How do I authenticate with the X-Series API using OAuth2?",
		},
		{
			description: "Two requests in one turn",
			message:     "My C-Series webhooks deliver duplicates, and I'm also hitting 429 errors on the products endpoint. What should I do?",
		},
	}

	for i, turn := range testTurns {
		fmt.Printf("\nTurn %d: %s\n", i+1, turn.description)
		if turn.message != "" {
			fmt.Printf("Customer: %s\n", turn.message)
		}

		state, err := pipeline.Invoke(ctx, threadID, turn.message)
		if err != nil {
			log.Fatalf("Pipeline cycle %d failed: %v", i+1, err)
		}

		if len(state.Messages) > 0 {
			last := state.Messages[len(state.Messages)-1]
			fmt.Printf("Assistant: %s\n", last.Content)
		}
		fmt.Println("──────────────────────────────────────────────")

		time.Sleep(500 * time.Millisecond)
	}

	logx.Info().Msg("Demo conversation completed")
}
