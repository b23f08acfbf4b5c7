package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/guardgate/guard-agent/internal/models"
)

type ProfanityCheck struct {
	words map[string]bool
}

// Default wordlist. Deployments supply their own list via config.
var defaultProfanity = []string{
	"damn", "darn", "hell", "crap", "bastard", "bloody", "bugger", "bollocks",
}

func NewProfanityCheck(words []string) *ProfanityCheck {
	if len(words) == 0 {
		words = defaultProfanity
	}

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}

	return &ProfanityCheck{words: set}
}

func (c *ProfanityCheck) Name() string {
	return "profanity_free"
}

// ProfanityCheck fails a text containing a listed word. Its replacement masks
// each matched word with asterisks of equal length, leaving everything else
// untouched. Matching is case-insensitive on whole words.
func (c *ProfanityCheck) Inspect(text string) models.CheckResult {
	now := time.Now()

	result := models.CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: "No listed words found",
	}

	var matched []string
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})

	replaced := text
	for _, field := range fields {
		word := strings.ToLower(strings.Trim(field, ".,!?;:()[]{}\"'"))
		if !c.words[word] {
			continue
		}
		matched = append(matched, word)
		mask := strings.Repeat("*", len(word))
		replaced = replaceWord(replaced, word, mask)
	}

	if len(matched) > 0 {
		result.Passed = false
		result.Reason = fmt.Sprintf("Text contains %d listed word(s)", len(matched))
		result.Replacement = replaced
	}

	result.Duration = time.Since(now)
	return result
}

// replaceWord masks every case-insensitive whole-word occurrence of word.
func replaceWord(text, word, mask string) string {
	var b strings.Builder
	lower := strings.ToLower(text)

	for {
		idx := strings.Index(lower, word)
		if idx == -1 {
			b.WriteString(text)
			break
		}

		end := idx + len(word)
		if isWordBoundary(lower, idx, end) {
			b.WriteString(text[:idx])
			b.WriteString(mask)
		} else {
			b.WriteString(text[:end])
		}
		text = text[end:]
		lower = lower[end:]
	}

	return b.String()
}

func isWordBoundary(s string, start, end int) bool {
	if start > 0 && isLetter(s[start-1]) {
		return false
	}
	if end < len(s) && isLetter(s[end]) {
		return false
	}
	return true
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
