package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/guardgate/guard-agent/internal/models"
)

// wordsPerSecond assumes an average reading speed of 200 words per minute.
const wordsPerSecond = 200.0 / 60.0

type ReadingTimeCheck struct {
	MinSeconds float64
	MaxSeconds float64
}

func NewReadingTimeCheck(minSeconds, maxSeconds float64) *ReadingTimeCheck {
	return &ReadingTimeCheck{MinSeconds: minSeconds, MaxSeconds: maxSeconds}
}

func (c *ReadingTimeCheck) Name() string {
	return "reading_time"
}

// ReadingTimeCheck estimates how long the text takes to read and passes when
// the estimate lies within [MinSeconds, MaxSeconds]. It never proposes a
// replacement.
func (c *ReadingTimeCheck) Inspect(text string) models.CheckResult {
	now := time.Now()

	result := models.CheckResult{
		Name:   c.Name(),
		Passed: false,
	}

	words := len(strings.Fields(text))
	seconds := float64(words) / wordsPerSecond

	if seconds < c.MinSeconds {
		result.Reason = fmt.Sprintf("Estimated reading time %.1fs is below the minimum of %.1fs", seconds, c.MinSeconds)
		result.Duration = time.Since(now)
		return result
	}

	if c.MaxSeconds > 0 && seconds > c.MaxSeconds {
		result.Reason = fmt.Sprintf("Estimated reading time %.1fs exceeds the maximum of %.1fs", seconds, c.MaxSeconds)
		result.Duration = time.Since(now)
		return result
	}

	result.Passed = true
	result.Reason = "Reading time is acceptable"
	result.Duration = time.Since(now)
	return result
}
