package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guardgate/guard-agent/internal/gate"
	"github.com/guardgate/guard-agent/internal/llm"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/schema"
	"github.com/guardgate/guard-agent/internal/trace"
	"github.com/rs/zerolog"
)

// Options configure one orchestrator instance.
type Options struct {
	// MaxSchemaRetries is how many times generation is re-issued after a
	// structured output fails to parse. Each retry amends the prompt with the
	// prior parse error. The first attempt is not a retry.
	MaxSchemaRetries int

	// GenerationTimeout bounds each generation attempt. Zero means no bound.
	GenerationTimeout time.Duration

	MaxTokens   int
	Temperature float64
	Retry       bool

	// FallbackMessage replaces the generated text when the output gate
	// rejects it. Empty keeps the rejected text in the outcome.
	FallbackMessage string
}

const defaultMaxSchemaRetries = 3

// Orchestrator sequences the pipeline: input gate, generation, output gate.
// Control flows strictly forward; any gate rejection short-circuits and
// returns a terminal outcome without invoking later stages. It holds no
// request-scoped state, so one instance serves concurrent requests.
type Orchestrator struct {
	inputGate  *gate.Gate
	outputGate *gate.Gate
	client     llm.LLMClient
	recorder   trace.Recorder
	opts       Options
	logger     *zerolog.Logger
}

func New(
	inputGate *gate.Gate,
	outputGate *gate.Gate,
	client llm.LLMClient,
	recorder trace.Recorder,
	opts Options,
	logger *zerolog.Logger,
) *Orchestrator {
	if opts.MaxSchemaRetries <= 0 {
		opts.MaxSchemaRetries = defaultMaxSchemaRetries
	}

	return &Orchestrator{
		inputGate:  inputGate,
		outputGate: outputGate,
		client:     client,
		recorder:   recorder,
		opts:       opts,
		logger:     logger,
	}
}

// Run executes the pipeline for one request. Gate rejections surface as
// terminal outcomes, not errors; generation and schema failures surface as
// typed errors alongside an outcome whose text is still defined.
func (o *Orchestrator) Run(ctx context.Context, genCtx models.GenerationContext) (models.Outcome, error) {
	id := genCtx.RequestID
	o.logger.Info().Str("requestID", id).Msg("starting pipeline")

	// Stage 1: input gate
	in := o.inputGate.Evaluate(genCtx.Prompt)
	o.record(ctx, id, models.StageInputGate, firstFailed(in), in.Accepted, in.Duration)

	if !in.Accepted {
		in.ID = id
		in.Stage = models.StageInputGate
		o.logger.Info().Str("requestID", id).Strs("failed_checks", in.FailedChecks).Msg("input rejected")
		return in, nil
	}

	// Stage 2: generation, with the (possibly sanitized) prompt
	genStart := time.Now()
	generated, err := o.generateStage(ctx, in.Text, genCtx.Schema)
	o.record(ctx, id, models.StageGeneration, "", err == nil, time.Since(genStart))

	if err != nil {
		outcome := models.Outcome{
			ID:       id,
			Accepted: false,
			Text:     generated,
			Stage:    models.StageGeneration,
			Checks:   in.Checks,
			Warnings: in.Warnings,
		}
		if outcome.Text == "" {
			outcome.Text = in.Text
		}
		return outcome, err
	}

	// Stage 3: output gate
	out := o.outputGate.Evaluate(generated)
	o.record(ctx, id, models.StageOutputGate, firstFailed(out), out.Accepted, out.Duration)

	outcome := models.Outcome{
		ID:           id,
		Accepted:     out.Accepted,
		Text:         out.Text,
		FailedChecks: out.FailedChecks,
		Warnings:     append(in.Warnings, out.Warnings...),
		Checks:       append(in.Checks, out.Checks...),
	}

	if !out.Accepted {
		outcome.Stage = models.StageOutputGate
		if o.opts.FallbackMessage != "" {
			outcome.Text = o.opts.FallbackMessage
		}
		o.logger.Info().Str("requestID", id).Strs("failed_checks", out.FailedChecks).Msg("output rejected")
	}

	o.logger.Info().
		Str("requestID", id).
		Bool("accepted", outcome.Accepted).
		Msg("pipeline complete")

	return outcome, nil
}

// generateStage runs one generation, or the schema retry loop when a schema
// was requested. It returns the generated text; on schema exhaustion the last
// raw text is returned together with the *schema.ParseError.
func (o *Orchestrator) generateStage(ctx context.Context, prompt string, s *models.Schema) (string, error) {
	if s == nil {
		return o.generate(ctx, prompt)
	}

	validator, err := schema.Compile(*s)
	if err != nil {
		return "", fmt.Errorf("invalid schema: %w", err)
	}

	basePrompt := prompt + "\n\n" + validator.Instructions()
	attemptPrompt := basePrompt

	var lastRaw string
	var lastErr *schema.ParseError

	for attempt := 0; attempt <= o.opts.MaxSchemaRetries; attempt++ {
		raw, err := o.generate(ctx, attemptPrompt)
		if err != nil {
			// Generation failures, timeouts included, never consume a
			// schema retry.
			return "", err
		}

		if _, perr := validator.Parse(raw); perr == nil {
			return schema.StripCodeFence(raw), nil
		} else if !errors.As(perr, &lastErr) {
			return "", perr
		}

		lastRaw = raw
		o.logger.Warn().
			Int("attempt", attempt+1).
			Err(lastErr).
			Msg("structured output failed to parse, amending prompt")

		attemptPrompt = fmt.Sprintf(
			"%s\n\nYour previous response was rejected: %v\nPrevious response:\n%s\nReturn only a corrected JSON object.",
			basePrompt, lastErr.Err, raw,
		)
	}

	return lastRaw, lastErr
}

// generate performs a single generation attempt under the configured timeout.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	attemptCtx := ctx
	if o.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.opts.GenerationTimeout)
		defer cancel()
	}

	req := llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	}

	var resp *llm.LLMResponse
	var err error
	if o.opts.Retry {
		resp, err = o.client.InvokeModelWithRetry(attemptCtx, req)
	} else {
		resp, err = o.client.InvokeModel(attemptCtx, req)
	}

	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		return "", &GenerationError{Err: err, TimedOut: timedOut}
	}

	return resp.Content, nil
}

func (o *Orchestrator) record(ctx context.Context, id string, stage models.Stage, checkName string, accepted bool, elapsed time.Duration) {
	o.recorder.Record(ctx, trace.Record{
		RequestID: id,
		Stage:     stage,
		CheckName: checkName,
		Accepted:  accepted,
		ElapsedMs: elapsed.Milliseconds(),
	})
}

func firstFailed(o models.Outcome) string {
	if len(o.FailedChecks) > 0 {
		return o.FailedChecks[0]
	}
	return ""
}
