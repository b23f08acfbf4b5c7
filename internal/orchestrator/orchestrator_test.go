package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guardgate/guard-agent/internal/check"
	"github.com/guardgate/guard-agent/internal/gate"
	"github.com/guardgate/guard-agent/internal/llm"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/orchestrator/mocks"
	"github.com/guardgate/guard-agent/internal/schema"
	"github.com/guardgate/guard-agent/internal/trace"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func resp(content string) *llm.LLMResponse {
	return &llm.LLMResponse{Content: content, StopReason: "end_turn"}
}

// slowInvoke blocks past any reasonable test timeout, honoring ctx.
func slowInvoke(ctx context.Context, req llm.LLMRequest) (*llm.LLMResponse, error) {
	select {
	case <-time.After(200 * time.Millisecond):
		return resp("late"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func passGate(name string) *gate.Gate {
	logger := zerolog.Nop()
	return gate.New(name, nil, &logger)
}

func blockingGate(name, trigger string) *gate.Gate {
	logger := zerolog.Nop()
	c, err := check.NewPatternCheck(trigger)
	if err != nil {
		panic(err)
	}
	return gate.New(name, []gate.ConfiguredCheck{
		{Check: c, OnFail: models.FailActionBlock},
	}, &logger)
}

func newTestOrchestrator(client llm.LLMClient, input, output *gate.Gate, opts Options) *Orchestrator {
	logger := zerolog.Nop()
	return New(input, output, client, trace.NopRecorder{}, opts, &logger)
}

func TestRunHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).Return(resp("a perfectly good answer"), nil)

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-1",
		Prompt:    "tell me something",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !got.Accepted {
		t.Error("expected outcome to be accepted")
	}
	if got.Text != "a perfectly good answer" {
		t.Errorf("Text: %q, want generated answer", got.Text)
	}
	if got.ID != "req-1" {
		t.Errorf("ID: %q, want req-1", got.ID)
	}
}

func TestRunInputRejectionSkipsGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: the controller fails the test if generation runs.
	client := mocks.NewMockLLMClient(ctrl)

	o := newTestOrchestrator(client, blockingGate("input", "forbidden"), passGate("output"), Options{})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-2",
		Prompt:    "this is forbidden content",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Accepted {
		t.Error("expected outcome to be rejected")
	}
	if got.Stage != models.StageInputGate {
		t.Errorf("Stage: %q, want %q", got.Stage, models.StageInputGate)
	}
	if len(got.FailedChecks) == 0 {
		t.Error("expected FailedChecks to name the blocking check")
	}
	if got.Text == "" {
		t.Error("outcome text must be defined on rejection")
	}
}

func TestRunOutputRejectionUsesFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).Return(resp("a very forbidden answer"), nil)

	o := newTestOrchestrator(client, passGate("input"), blockingGate("output", "forbidden"), Options{
		FallbackMessage: "I cannot answer that.",
	})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-3",
		Prompt:    "anything",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Accepted {
		t.Error("expected outcome to be rejected")
	}
	if got.Stage != models.StageOutputGate {
		t.Errorf("Stage: %q, want %q", got.Stage, models.StageOutputGate)
	}
	if got.Text != "I cannot answer that." {
		t.Errorf("Text: %q, want the fallback message", got.Text)
	}
}

func TestRunOutputRejectionWithoutFallbackKeepsText(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).Return(resp("a very forbidden answer"), nil)

	o := newTestOrchestrator(client, passGate("input"), blockingGate("output", "forbidden"), Options{})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-4",
		Prompt:    "anything",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Accepted {
		t.Error("expected outcome to be rejected")
	}
	if got.Text != "a very forbidden answer" {
		t.Errorf("Text: %q, want the rejected text", got.Text)
	}
}

func TestRunGenerationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).Return(nil, errors.New("upstream unavailable"))

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-5",
		Prompt:    "anything",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type: %T, want *GenerationError", err)
	}
	if genErr.TimedOut {
		t.Error("upstream failure should not be marked as a timeout")
	}
	if got.Accepted {
		t.Error("expected outcome to be rejected")
	}
	if got.Stage != models.StageGeneration {
		t.Errorf("Stage: %q, want %q", got.Stage, models.StageGeneration)
	}
	if got.Text == "" {
		t.Error("outcome text must be defined even on generation failure")
	}
}

func TestRunGenerationTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).DoAndReturn(slowInvoke)

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{
		GenerationTimeout: 10 * time.Millisecond,
	})

	_, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-6",
		Prompt:    "anything",
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type: %T, want *GenerationError", err)
	}
	if !genErr.TimedOut {
		t.Errorf("expected TimedOut, got %v", genErr)
	}
}

func TestRunRecordsEachStage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).Return(resp("fine"), nil)

	recorder := mocks.NewMockRecorder(ctrl)
	var stages []models.Stage
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, rec trace.Record) {
		if rec.RequestID != "req-13" {
			t.Errorf("Record.RequestID: %q, want req-13", rec.RequestID)
		}
		stages = append(stages, rec.Stage)
	}).Times(3)

	logger := zerolog.Nop()
	o := New(passGate("input"), passGate("output"), client, recorder, Options{}, &logger)

	_, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-13",
		Prompt:    "anything",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []models.Stage{models.StageInputGate, models.StageGeneration, models.StageOutputGate}
	for i, stage := range want {
		if stages[i] != stage {
			t.Errorf("stage %d: %q, want %q", i, stages[i], stage)
		}
	}
}

func confidenceSchema() *models.Schema {
	min, max := 0.0, 1.0
	return &models.Schema{
		Name: "answer",
		Fields: []models.SchemaField{
			{Name: "content", Type: "string", Required: true},
			{Name: "confidence", Type: "number", Required: true, Minimum: &min, Maximum: &max},
		},
	}
}

func TestRunSchemaSuccessFirstAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	var prompt string
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.LLMRequest) (*llm.LLMResponse, error) {
			prompt = req.Prompt
			return resp(`{"content": "hi", "confidence": 0.9}`), nil
		})

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-7",
		Prompt:    "answer me",
		Schema:    confidenceSchema(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !got.Accepted {
		t.Error("expected outcome to be accepted")
	}
	if !strings.Contains(prompt, "JSON object") {
		t.Error("prompt should carry schema instructions")
	}
}

func TestRunSchemaStripsCodeFence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).
		Return(resp("```json\n{\"content\": \"hi\", \"confidence\": 0.9}\n```"), nil)

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-8",
		Prompt:    "answer me",
		Schema:    confidenceSchema(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if strings.Contains(got.Text, "```") {
		t.Errorf("fence should be stripped from the outcome text, got %q", got.Text)
	}
}

func TestRunSchemaRetryThenSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	var prompts []string
	canned := func(content string) func(context.Context, llm.LLMRequest) (*llm.LLMResponse, error) {
		return func(_ context.Context, req llm.LLMRequest) (*llm.LLMResponse, error) {
			prompts = append(prompts, req.Prompt)
			return resp(content), nil
		}
	}
	gomock.InOrder(
		client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).DoAndReturn(canned("not json at all")),
		client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).DoAndReturn(canned(`{"content": "hi", "confidence": 0.9}`)),
	)

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{MaxSchemaRetries: 3})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-9",
		Prompt:    "answer me",
		Schema:    confidenceSchema(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !got.Accepted {
		t.Error("expected outcome to be accepted")
	}

	// The retry prompt must echo the rejection and the bad response.
	retry := prompts[1]
	if !strings.Contains(retry, "previous response was rejected") {
		t.Errorf("retry prompt missing rejection notice:\n%s", retry)
	}
	if !strings.Contains(retry, "not json at all") {
		t.Errorf("retry prompt missing the prior response:\n%s", retry)
	}
}

func TestRunSchemaRetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	// One initial attempt plus two retries, enforced by the controller.
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).Return(resp("still not json"), nil).Times(3)

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{MaxSchemaRetries: 2})

	got, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-10",
		Prompt:    "answer me",
		Schema:    confidenceSchema(),
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var parseErr *schema.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error type: %T, want *schema.ParseError", err)
	}
	if got.Accepted {
		t.Error("expected outcome to be rejected")
	}
	if got.Text != "still not json" {
		t.Errorf("Text: %q, want the last raw response", got.Text)
	}
}

func TestRunSchemaTimeoutDoesNotConsumeRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockLLMClient(ctrl)
	// Exactly one attempt: a timed-out attempt must not be retried.
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).DoAndReturn(slowInvoke)

	o := newTestOrchestrator(client, passGate("input"), passGate("output"), Options{
		MaxSchemaRetries:  3,
		GenerationTimeout: 10 * time.Millisecond,
	})

	_, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-11",
		Prompt:    "answer me",
		Schema:    confidenceSchema(),
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type: %T, want *GenerationError", err)
	}
	if !genErr.TimedOut {
		t.Error("expected TimedOut")
	}
}

func TestRunSanitizedPromptReachesGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := zerolog.Nop()
	input := gate.New("input", []gate.ConfiguredCheck{
		{Check: check.NewProfanityCheck([]string{"damn"}), OnFail: models.FailActionSanitize},
	}, &logger)

	client := mocks.NewMockLLMClient(ctrl)
	var prompt string
	client.EXPECT().InvokeModel(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.LLMRequest) (*llm.LLMResponse, error) {
			prompt = req.Prompt
			return resp("fine"), nil
		})

	o := newTestOrchestrator(client, input, passGate("output"), Options{})

	_, err := o.Run(context.Background(), models.GenerationContext{
		RequestID: "req-12",
		Prompt:    "well damn tell me",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if prompt != "well **** tell me" {
		t.Errorf("generation prompt: %q, want the sanitized prompt", prompt)
	}
}
