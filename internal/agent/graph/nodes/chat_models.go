package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	Provider         model.ProviderConfig
	ExtractionConfig *model.ExtractionModelConfig
	ResponseConfig   *model.ResponseModelConfig
}

// ChatModels holds the two models the pipeline stages depend on: one tuned
// for structured extraction, one for tool-calling response generation. Both
// are plain ToolCallingChatModel values; the backend behind them is decided
// by configuration alone.
type ChatModels struct {
	Extraction einomodel.ToolCallingChatModel
	Response   einomodel.ToolCallingChatModel

	ExtractionModelName string
	ResponseModelName   string
}

// NewChatModels creates both models against the configured backend.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.ExtractionConfig == nil || config.ResponseConfig == nil {
		return nil, fmt.Errorf("model configs are nil")
	}

	var (
		extraction einomodel.ToolCallingChatModel
		response   einomodel.ToolCallingChatModel
		err        error
	)

	switch strings.ToLower(strings.TrimSpace(config.Provider.Backend)) {
	case "", "gemini":
		extraction, response, err = newGeminiModels(ctx, config)
	case "azure", "azure_openai":
		extraction, response, err = newAzureModels(ctx, config)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", config.Provider.Backend)
	}
	if err != nil {
		return nil, err
	}

	return &ChatModels{
		Extraction:          extraction,
		Response:            response,
		ExtractionModelName: config.ExtractionConfig.Model,
		ResponseModelName:   config.ResponseConfig.Model,
	}, nil
}

func newGeminiModels(ctx context.Context, config ChatModelConfig) (extraction, response einomodel.ToolCallingChatModel, err error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.Provider.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.Provider.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.Provider.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	extraction, err = gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ExtractionConfig.Model,
		Temperature: &config.ExtractionConfig.Temperature,
		MaxTokens:   &config.ExtractionConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extraction model")
		return nil, nil, fmt.Errorf("error creating extraction model: %w", err)
	}

	response, err = gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ResponseConfig.Model,
		Temperature: &config.ResponseConfig.Temperature,
		MaxTokens:   &config.ResponseConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, nil, fmt.Errorf("error creating response model: %w", err)
	}

	return extraction, response, nil
}

func newAzureModels(ctx context.Context, config ChatModelConfig) (extraction, response einomodel.ToolCallingChatModel, err error) {
	if config.Provider.AzureEndpoint == "" || config.Provider.AzureAPIKey == "" {
		return nil, nil, fmt.Errorf("azure backend requires endpoint and api key")
	}

	newModel := func(m string, temperature float32, maxTokens int) (einomodel.ToolCallingChatModel, error) {
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			ByAzure:     true,
			BaseURL:     config.Provider.AzureEndpoint,
			APIKey:      config.Provider.AzureAPIKey,
			APIVersion:  config.Provider.AzureAPIVersion,
			Model:       m,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
	}

	extraction, err = newModel(config.ExtractionConfig.Model, config.ExtractionConfig.Temperature, config.ExtractionConfig.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extraction model")
		return nil, nil, fmt.Errorf("error creating extraction model: %w", err)
	}

	response, err = newModel(config.ResponseConfig.Model, config.ResponseConfig.Temperature, config.ResponseConfig.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, nil, fmt.Errorf("error creating response model: %w", err)
	}

	return extraction, response, nil
}
