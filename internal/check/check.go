package check

import (
	"github.com/guardgate/guard-agent/internal/models"
)

// Check is one named validation rule applied to a text. Implementations are
// immutable after construction and must be deterministic: inspecting the same
// text twice yields the same result (timings aside).
type Check interface {
	Name() string
	Inspect(text string) models.CheckResult
}
