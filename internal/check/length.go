package check

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/guardgate/guard-agent/internal/models"
)

type LengthCheck struct {
	Min int
	Max int
}

func NewLengthCheck(min, max int) *LengthCheck {
	return &LengthCheck{Min: min, Max: max}
}

func (c *LengthCheck) Name() string {
	return "valid_length"
}

// LengthCheck passes a text whose rune count lies within [Min, Max].
// A Max of 0 means unbounded. It never proposes a replacement.
func (c *LengthCheck) Inspect(text string) models.CheckResult {
	now := time.Now()

	result := models.CheckResult{
		Name:   c.Name(),
		Passed: false,
	}

	length := utf8.RuneCountInString(text)

	if length < c.Min {
		result.Reason = fmt.Sprintf("Text is too short: %d characters, minimum is %d", length, c.Min)
		result.Duration = time.Since(now)
		return result
	}

	if c.Max > 0 && length > c.Max {
		result.Reason = fmt.Sprintf("Text is too long: %d characters, maximum is %d", length, c.Max)
		result.Duration = time.Since(now)
		return result
	}

	result.Passed = true
	result.Reason = "Length is acceptable"
	result.Duration = time.Since(now)
	return result
}
