package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Gate names every deployment is expected to declare.
const (
	GateInputSafety       = "input_safety"
	GateOutputQuality     = "output_quality"
	GateContentModeration = "content_moderation"
)

func LoadGuardsConfig() (*GuardsConfig, error) {

	path := os.Getenv("GUARDS_CONFIG_PATH")
	if path == "" {
		path = "configs/guards.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg GuardsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *GuardsConfig) {
	if cfg.Generation.Model.MaxTokens == 0 {
		cfg.Generation.Model.MaxTokens = 1024
	}
	if cfg.Generation.MaxSchemaRetries == 0 {
		cfg.Generation.MaxSchemaRetries = 3
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 30
	}

	for name, g := range cfg.Gates {
		for i := range g.Checks {
			if g.Checks[i].OnFail == "" {
				g.Checks[i].OnFail = "block"
			}
		}
		cfg.Gates[name] = g
	}
}

func (c *GuardsConfig) Validate() error {
	for name, g := range c.Gates {
		if len(g.Checks) == 0 {
			return fmt.Errorf("gate %q has no checks", name)
		}

		for _, check := range g.Checks {
			if check.Name == "" {
				return fmt.Errorf("gate %q has a check without a name", name)
			}

			switch check.OnFail {
			case "block", "sanitize", "warn":
			default:
				return fmt.Errorf("gate %q check %q has invalid on_fail %q", name, check.Name, check.OnFail)
			}

			if check.Params.Threshold < 0 || check.Params.Threshold > 1.0 {
				return fmt.Errorf("gate %q check %q has threshold %f out of range [0.0, 1.0]", name, check.Name, check.Params.Threshold)
			}
		}
	}

	return nil
}
