package gate

import (
	"errors"
	"fmt"

	"github.com/guardgate/guard-agent/internal/config"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/registry"
	"github.com/rs/zerolog"
)

// BuildFromConfig constructs every declared gate, resolving checks through the
// registry. An unavailable check is skipped with a warning rather than failing
// the gate: a missing validator must never take the pipeline down.
func BuildFromConfig(cfg *config.GuardsConfig, reg *registry.Registry, logger *zerolog.Logger) (map[string]*Gate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("guards config is nil")
	}

	gates := make(map[string]*Gate, len(cfg.Gates))

	for name, gateCfg := range cfg.Gates {
		var checks []ConfiguredCheck

		for _, checkCfg := range gateCfg.Checks {
			c, err := reg.Resolve(checkCfg.Name, registry.Params{
				MinLength:  checkCfg.Params.MinLength,
				MaxLength:  checkCfg.Params.MaxLength,
				Threshold:  checkCfg.Params.Threshold,
				Pattern:    checkCfg.Params.Pattern,
				Expression: checkCfg.Params.Expression,
				Words:      checkCfg.Params.Words,
				MinSeconds: checkCfg.Params.MinSeconds,
				MaxSeconds: checkCfg.Params.MaxSeconds,
			})
			if err != nil {
				if errors.Is(err, registry.ErrCheckUnavailable) {
					logger.Warn().
						Err(err).
						Str("gate", name).
						Str("check", checkCfg.Name).
						Msg("check unavailable, skipping")
					continue
				}
				return nil, fmt.Errorf("gate %q: %w", name, err)
			}

			checks = append(checks, ConfiguredCheck{
				Check:  c,
				OnFail: models.FailAction(checkCfg.OnFail),
			})
		}

		gates[name] = New(name, checks, logger)

		logger.Info().
			Str("gate", name).
			Int("checks", len(checks)).
			Msg("gate built")
	}

	return gates, nil
}
