package gate

import (
	"time"

	"github.com/guardgate/guard-agent/internal/check"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

// ConfiguredCheck pairs a check with the action taken when it fires.
type ConfiguredCheck struct {
	Check  check.Check
	OnFail models.FailAction
}

// Gate is an ordered pipeline of checks applied to one piece of text.
// It is built once from configuration and reused across requests; Evaluate
// never mutates the check list, so gates are safe for concurrent use.
type Gate struct {
	name   string
	checks []ConfiguredCheck
	logger *zerolog.Logger
}

func New(name string, checks []ConfiguredCheck, logger *zerolog.Logger) *Gate {
	return &Gate{
		name:   name,
		checks: checks,
		logger: logger,
	}
}

func (g *Gate) Name() string {
	return g.name
}

// Evaluate runs each check in declared order against text.
//
// A failing check with action "block" stops evaluation immediately: the
// outcome is rejected and later checks do not run. A failing check with
// action "sanitize" feeds its replacement to the next check and evaluation
// continues; if it offers no replacement the failure is recorded as a
// warning. A failing check with action "warn" records a warning and
// continues. The outcome text is always defined, falling back to the last
// seen text when the gate rejects.
func (g *Gate) Evaluate(text string) models.Outcome {
	now := time.Now()

	outcome := models.Outcome{
		Accepted: true,
		Text:     text,
	}

	current := text
	for _, cc := range g.checks {
		res := cc.Check.Inspect(current)

		if res.Passed {
			outcome.Checks = append(outcome.Checks, res)
			continue
		}

		res.Action = cc.OnFail
		outcome.Checks = append(outcome.Checks, res)

		switch cc.OnFail {
		case models.FailActionBlock:
			g.logger.Info().
				Str("gate", g.name).
				Str("check", res.Name).
				Str("reason", res.Reason).
				Msg("check blocked text")

			outcome.Accepted = false
			outcome.FailedChecks = append(outcome.FailedChecks, res.Name)
			outcome.Text = current
			outcome.Duration = time.Since(now)
			return outcome

		case models.FailActionSanitize:
			if res.Replacement == "" {
				// The check failed but offered no rewrite. Surface it as a
				// warning instead of letting the failure pass unnoticed.
				outcome.Warnings = append(outcome.Warnings, res.Name+": "+res.Reason)
				g.logger.Warn().
					Str("gate", g.name).
					Str("check", res.Name).
					Str("reason", res.Reason).
					Msg("sanitize check failed without a replacement")
				continue
			}
			current = res.Replacement
			g.logger.Debug().
				Str("gate", g.name).
				Str("check", res.Name).
				Msg("check sanitized text")

		case models.FailActionWarn:
			outcome.Warnings = append(outcome.Warnings, res.Name+": "+res.Reason)
			g.logger.Warn().
				Str("gate", g.name).
				Str("check", res.Name).
				Str("reason", res.Reason).
				Msg("check warning")
		}
	}

	outcome.Text = current
	outcome.Duration = time.Since(now)
	return outcome
}
