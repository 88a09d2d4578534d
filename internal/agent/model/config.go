package model

// ================ Config ================

// ProviderConfig selects and configures the chat-model backend. The backend
// is chosen by configuration only; stages never inspect the concrete type.
type ProviderConfig struct {
	Backend string `envconfig:"MODEL_PROVIDER" default:"gemini"`

	// Gemini backend
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Azure OpenAI-compatible backend
	AzureEndpoint   string `envconfig:"AZURE_OPENAI_ENDPOINT"`
	AzureAPIKey     string `envconfig:"AZURE_OPENAI_API_KEY"`
	AzureAPIVersion string `envconfig:"AZURE_OPENAI_API_VERSION" default:"2025-04-01-preview"`
}

// ExtractionModelConfig configures the model used for structured extraction
// (request details, coordination, assembly).
type ExtractionModelConfig struct {
	Model       string  `envconfig:"EXTRACTION_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"EXTRACTION_MAX_TOKENS" default:"2500"`
	Temperature float32 `envconfig:"EXTRACTION_TEMPERATURE" default:"0.1"`
}

// ResponseModelConfig configures the tool-calling model used by the
// per-item responders.
type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2500"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.1"`
}

// PipelineConfig groups the per-cycle behavioral knobs.
type PipelineConfig struct {
	// MaxClarificationAttempts caps how many clarifying questions are asked
	// before the pipeline proceeds with whatever it has.
	MaxClarificationAttempts int `envconfig:"MAX_CLARIFICATION_ATTEMPTS" default:"3"`

	// MaxToolIterations bounds the responder's tool-use loop.
	MaxToolIterations int `envconfig:"MAX_TOOL_ITERATIONS" default:"2"`

	// MaxConcurrentItems caps concurrently running responder branches.
	MaxConcurrentItems int `envconfig:"MAX_CONCURRENT_REQUESTS" default:"5"`

	// MaxRequestItems caps how many sub-requests one cycle handles.
	MaxRequestItems int `envconfig:"MAX_REQUEST_ITEMS" default:"3"`

	// MaxRetries is recognized for compatibility with the serving layer's
	// config schema; stage logic does not retry on its own.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	// RequestTimeout bounds one full pipeline cycle, in seconds. Zero
	// disables the bound.
	RequestTimeout int `envconfig:"REQUEST_TIMEOUT" default:"120"`

	// SessionTTL is the checkpoint lifetime, as a time.ParseDuration string.
	SessionTTL string `envconfig:"SESSION_TTL" default:"24h"`
}

// ToolsConfig describes where the responders discover their support tools.
type ToolsConfig struct {
	// Transport selects the tool source: "local" for the embedded support
	// tools, "streamable_http" or "sse" for an MCP server.
	Transport string `envconfig:"TOOLS_TRANSPORT" default:"local"`
	URL       string `envconfig:"TOOLS_URL" default:"http://localhost:9000/mcp"`
	Timeout   int    `envconfig:"TOOLS_TIMEOUT" default:"30"`
}
