package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/guardgate/guard-agent/internal/config"
	"github.com/guardgate/guard-agent/internal/gate"
	"github.com/guardgate/guard-agent/internal/llm"
	"github.com/guardgate/guard-agent/internal/llm/bedrock"
	"github.com/guardgate/guard-agent/internal/llm/gpt"
	"github.com/guardgate/guard-agent/internal/orchestrator"
	"github.com/guardgate/guard-agent/internal/registry"
	"github.com/guardgate/guard-agent/internal/trace"
	"github.com/rs/zerolog"
)

type Config struct {
	AWSRegion       string
	ClaudeModelID   string
	OpenAIKey       string
	OpenAIModelID   string
	DefaultProvider string
	GuardsEnabled   bool
	OutputGateName  string
}

type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Gates        map[string]*gate.Gate
	Logger       *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:   getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:       getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:   getEnv("OPEN_AI_MODEL_ID", ""),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "bedrock"),
		GuardsEnabled:   getEnvBool("GUARDS_ENABLED", true),
		OutputGateName:  getEnv("OUTPUT_GATE", config.GateOutputQuality),
	}
}

// Wire builds the full pipeline: registry, gates from YAML, LLM client,
// observability recorder, orchestrator. recorder may be nil, in which case
// stage records go to the logger only.
func Wire(ctx context.Context, cfg *Config, recorder trace.Recorder, logger *zerolog.Logger) (*Dependencies, error) {
	llmClient, err := createLLMClient(ctx, cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	// Load gate configuration from YAML
	guardsConfig, err := config.LoadGuardsConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load guards config: %w", err)
	}

	// Build gates through the check registry
	reg := registry.New(logger)
	gates, err := gate.BuildFromConfig(guardsConfig, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build gates from config: %w", err)
	}

	inputGate := gates[config.GateInputSafety]
	outputGate := gates[cfg.OutputGateName]

	// Disabled guards degrade to empty pass-through gates.
	if !cfg.GuardsEnabled || inputGate == nil {
		if !cfg.GuardsEnabled {
			logger.Warn().Msg("guards disabled, gates pass texts through untouched")
		}
		inputGate = gate.New(config.GateInputSafety, nil, logger)
	}
	if !cfg.GuardsEnabled || outputGate == nil {
		outputGate = gate.New(cfg.OutputGateName, nil, logger)
	}

	if recorder == nil {
		recorder = trace.NewLogRecorder(logger)
	}

	orch := orchestrator.New(inputGate, outputGate, llmClient, recorder, orchestrator.Options{
		MaxSchemaRetries:  guardsConfig.Generation.MaxSchemaRetries,
		GenerationTimeout: time.Duration(guardsConfig.Generation.TimeoutSeconds) * time.Second,
		MaxTokens:         guardsConfig.Generation.Model.MaxTokens,
		Temperature:       guardsConfig.Generation.Model.Temperature,
		Retry:             guardsConfig.Generation.Model.Retry,
		FallbackMessage:   guardsConfig.Generation.FallbackMessage,
	}, logger)

	return &Dependencies{
		Orchestrator: orch,
		Gates:        gates,
		Logger:       logger,
	}, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		value = defaultValue
	}

	return value
}

func createLLMClient(ctx context.Context, provider string, cfg *Config) (llm.LLMClient, error) {
	switch provider {
	case "bedrock":
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	case "openai":
		return gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
	default:
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	}
}
