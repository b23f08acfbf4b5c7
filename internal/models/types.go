package models

import (
	"time"
)

// FailAction is what a gate does when a check fires.
type FailAction string

const (
	FailActionBlock    FailAction = "block"
	FailActionSanitize FailAction = "sanitize"
	FailActionWarn     FailAction = "warn"
)

// Stage identifies which pipeline stage produced a record or outcome.
type Stage string

const (
	StageInputGate  Stage = "input_gate"
	StageGeneration Stage = "generation"
	StageOutputGate Stage = "output_gate"
)

// Input message

type GenerationRequest struct {
	EventID string  `json:"event_id"`
	Prompt  string  `json:"prompt"`
	Schema  *Schema `json:"schema,omitempty"`
}

// Normalized internal object
type GenerationContext struct {
	RequestID string    `json:"request_id" jsonschema:"required,description=Unique request identifier"`
	Prompt    string    `json:"prompt" jsonschema:"required,description=User prompt to validate and generate from"`
	Schema    *Schema   `json:"schema,omitempty" jsonschema:"description=Optional structural contract for the generated output"`
	CreatedAt time.Time `json:"created_at" jsonschema:"description=Time when the generation context was created"`
}

// Schema declares the shape expected of structured generated output.
type Schema struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []SchemaField `json:"fields" yaml:"fields"`
}

type SchemaField struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"` // string, number, integer, boolean
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
	Minimum     *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// One check's output
type CheckResult struct {
	Name        string        `json:"name"`
	Passed      bool          `json:"passed"`
	Action      FailAction    `json:"action,omitempty"`
	Reason      string        `json:"reason"`
	Replacement string        `json:"replacement,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// Outcome is the result of running a gate, or the whole pipeline, over one text.
// Text is always defined: it falls back to the last seen text even when Accepted
// is false, so callers can choose to display or discard it.
type Outcome struct {
	ID           string        `json:"id"`
	Accepted     bool          `json:"accepted"`
	Text         string        `json:"text"`
	Stage        Stage         `json:"stage,omitempty"`
	FailedChecks []string      `json:"failed_checks,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Checks       []CheckResult `json:"checks,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}
