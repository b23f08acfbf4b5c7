package config

// GuardsConfig represents the complete gate configuration
type GuardsConfig struct {
	Gates      map[string]GateConfig `yaml:"gates"`
	Generation GenerationConfig      `yaml:"generation"`
}

// GateConfig is one named ordered pipeline of checks
type GateConfig struct {
	Checks []CheckConfig `yaml:"checks"`
}

// CheckConfig declares one check instance inside a gate
type CheckConfig struct {
	Name   string      `yaml:"name"`
	OnFail string      `yaml:"on_fail"`
	Params CheckParams `yaml:"params"`
}

// CheckParams are the recognized per-check options
type CheckParams struct {
	MinLength  int      `yaml:"min_length"`
	MaxLength  int      `yaml:"max_length"`
	Threshold  float64  `yaml:"threshold"`
	Pattern    string   `yaml:"pattern"`
	Expression string   `yaml:"expression"`
	Words      []string `yaml:"words"`
	MinSeconds float64  `yaml:"min_seconds"`
	MaxSeconds float64  `yaml:"max_seconds"`
}

// GenerationConfig holds model parameters and the structured-output retry bound
type GenerationConfig struct {
	MaxSchemaRetries int         `yaml:"max_schema_retries"`
	TimeoutSeconds   int         `yaml:"timeout_seconds"`
	FallbackMessage  string      `yaml:"fallback_message"`
	Model            ModelConfig `yaml:"model"`
}

// ModelConfig contains per-request model parameters
type ModelConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Retry       bool    `yaml:"retry"`
}
