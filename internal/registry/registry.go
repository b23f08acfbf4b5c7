package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/guardgate/guard-agent/internal/check"
	"github.com/rs/zerolog"
)

// ErrCheckUnavailable reports that a named check could not be resolved or
// built. Callers degrade by skipping the check, never by failing the pipeline.
var ErrCheckUnavailable = errors.New("check unavailable")

// Params carries the recognized per-check options from configuration.
type Params struct {
	MinLength  int
	MaxLength  int
	Threshold  float64
	Pattern    string
	Expression string
	Words      []string
	MinSeconds float64
	MaxSeconds float64
}

// Builder constructs one check implementation from its parameters.
type Builder func(p Params) (check.Check, error)

// Registry resolves named checks, building each on first use and caching the
// result. Resolution happens during gate construction at startup; after that
// the cache is only read.
type Registry struct {
	builders map[string]Builder
	mu       sync.Mutex
	cache    map[string]check.Check
	logger   *zerolog.Logger
}

func New(logger *zerolog.Logger) *Registry {
	r := &Registry{
		builders: make(map[string]Builder),
		cache:    make(map[string]check.Check),
		logger:   logger,
	}
	r.registerBuiltins()
	return r
}

// Register installs a builder under name, replacing any previous one.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Resolve returns the check registered under name, building and caching it on
// first use. The lock ensures concurrent resolutions of the same name build
// only once. Unknown names and failed builds wrap ErrCheckUnavailable.
func (r *Registry) Resolve(name string, p Params) (check.Check, error) {
	key := cacheKey(name, p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[key]; ok {
		return c, nil
	}

	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: no builder registered for %q", ErrCheckUnavailable, name)
	}

	c, err := builder(p)
	if err != nil {
		return nil, fmt.Errorf("%w: building %q: %v", ErrCheckUnavailable, name, err)
	}

	r.cache[key] = c
	r.logger.Info().Str("check", name).Msg("check installed")
	return c, nil
}

func cacheKey(name string, p Params) string {
	return fmt.Sprintf("%s|%d|%d|%.3f|%s|%s|%.1f|%.1f|%s",
		name, p.MinLength, p.MaxLength, p.Threshold, p.Pattern, p.Expression,
		p.MinSeconds, p.MaxSeconds, strings.Join(p.Words, ","))
}

func (r *Registry) registerBuiltins() {
	r.builders["valid_length"] = func(p Params) (check.Check, error) {
		return check.NewLengthCheck(p.MinLength, p.MaxLength), nil
	}
	r.builders["profanity_free"] = func(p Params) (check.Check, error) {
		return check.NewProfanityCheck(p.Words), nil
	}
	r.builders["deny_pattern"] = func(p Params) (check.Check, error) {
		if p.Pattern == "" {
			return nil, fmt.Errorf("deny_pattern requires a pattern")
		}
		return check.NewPatternCheck(p.Pattern)
	}
	r.builders["reading_time"] = func(p Params) (check.Check, error) {
		return check.NewReadingTimeCheck(p.MinSeconds, p.MaxSeconds), nil
	}
	r.builders["toxic_language"] = func(p Params) (check.Check, error) {
		return check.NewToxicLanguageCheck(p.Threshold), nil
	}
	r.builders["sensitive_topics"] = func(p Params) (check.Check, error) {
		return check.NewSensitiveTopicsCheck(p.Threshold), nil
	}
	r.builders["cel"] = func(p Params) (check.Check, error) {
		if p.Expression == "" {
			return nil, fmt.Errorf("cel requires an expression")
		}
		return check.NewCELCheck(p.Expression)
	}
}
