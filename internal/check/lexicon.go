package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/guardgate/guard-agent/internal/models"
)

// LexiconCheck scores a text against a weighted term list. Every occurrence of
// a term adds its weight; the score is capped at 1.0 and the check fails when
// it reaches the configured threshold.
type LexiconCheck struct {
	name      string
	terms     map[string]float64
	threshold float64
}

var toxicTerms = map[string]float64{
	"idiot": 0.5, "stupid": 0.4, "moron": 0.5, "loser": 0.4,
	"shut up": 0.5, "hate you": 0.6, "worthless": 0.5, "pathetic": 0.4,
	"kill yourself": 1.0, "go die": 1.0,
}

var sensitiveTerms = map[string]float64{
	"violence": 0.5, "hate speech": 0.6, "harassment": 0.5,
	"self harm": 0.8, "self-harm": 0.8, "suicide": 0.8,
	"illegal drugs": 0.6, "weapons": 0.5, "terrorism": 0.8,
}

func NewToxicLanguageCheck(threshold float64) *LexiconCheck {
	return newLexiconCheck("toxic_language", toxicTerms, threshold)
}

func NewSensitiveTopicsCheck(threshold float64) *LexiconCheck {
	return newLexiconCheck("sensitive_topics", sensitiveTerms, threshold)
}

func newLexiconCheck(name string, terms map[string]float64, threshold float64) *LexiconCheck {
	if threshold <= 0 || threshold > 1.0 {
		threshold = 0.8
	}

	return &LexiconCheck{
		name:      name,
		terms:     terms,
		threshold: threshold,
	}
}

func (c *LexiconCheck) Name() string {
	return c.name
}

func (c *LexiconCheck) Inspect(text string) models.CheckResult {
	now := time.Now()

	result := models.CheckResult{
		Name:   c.name,
		Passed: true,
	}

	lower := strings.ToLower(text)

	score := 0.0
	hits := 0
	for term, weight := range c.terms {
		count := strings.Count(lower, term)
		if count == 0 {
			continue
		}
		hits += count
		score += weight * float64(count)
	}

	if score > 1.0 {
		score = 1.0
	}

	if score >= c.threshold {
		result.Passed = false
		result.Reason = fmt.Sprintf("Score %.2f from %d term hit(s) reached threshold %.2f", score, hits, c.threshold)
	} else {
		result.Reason = fmt.Sprintf("Score %.2f is below threshold %.2f", score, c.threshold)
	}

	result.Duration = time.Since(now)
	return result
}
