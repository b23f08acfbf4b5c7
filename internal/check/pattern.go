package check

import (
	"fmt"
	"regexp"
	"time"

	"github.com/guardgate/guard-agent/internal/models"
)

type PatternCheck struct {
	pattern *regexp.Regexp
}

func NewPatternCheck(pattern string) (*PatternCheck, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid deny pattern %q: %w", pattern, err)
	}

	return &PatternCheck{pattern: re}, nil
}

func (c *PatternCheck) Name() string {
	return "deny_pattern"
}

// PatternCheck fails a text matching the configured regular expression.
// Its replacement substitutes every match with "[redacted]".
func (c *PatternCheck) Inspect(text string) models.CheckResult {
	now := time.Now()

	result := models.CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: "No denied pattern found",
	}

	matches := c.pattern.FindAllString(text, -1)
	if len(matches) > 0 {
		result.Passed = false
		result.Reason = fmt.Sprintf("Text matches denied pattern %d time(s)", len(matches))
		result.Replacement = c.pattern.ReplaceAllString(text, "[redacted]")
	}

	result.Duration = time.Since(now)
	return result
}
