package mcpadapter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/guardgate/guard-agent/internal/gate"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/orchestrator"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GenerateInput is the MCP tool input schema for the full pipeline.
type GenerateInput struct {
	EventID string         `json:"event_id,omitempty" jsonschema:"unique event identifier"`
	Prompt  string         `json:"prompt" jsonschema:"user prompt to validate and generate from"`
	Schema  *models.Schema `json:"schema,omitempty" jsonschema:"optional structural contract for the generated output"`
}

// ValidateInput is the MCP tool input schema for single-gate validation.
type ValidateInput struct {
	EventID  string `json:"event_id,omitempty" jsonschema:"unique event identifier"`
	Text     string `json:"text" jsonschema:"text to validate"`
	GateName string `json:"gate_name" jsonschema:"gate name: input_safety, output_quality, or content_moderation"`
}

// NewGenerateHandler returns a tool handler that runs the full pipeline.
// Pass the returned function to mcp.AddTool.
func NewGenerateHandler(orch *orchestrator.Orchestrator) func(context.Context, *mcp.CallToolRequest, GenerateInput) (*mcp.CallToolResult, models.Outcome, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateInput) (*mcp.CallToolResult, models.Outcome, error) {
		genCtx := models.GenerationContext{
			RequestID: input.EventID,
			Prompt:    input.Prompt,
			Schema:    input.Schema,
			CreatedAt: time.Now(),
		}
		if genCtx.RequestID == "" {
			genCtx.RequestID = uuid.NewString()
		}

		outcome, err := orch.Run(ctx, genCtx)
		return nil, outcome, err
	}
}

// NewValidateHandler returns a tool handler that runs one named gate.
// Pass the returned function to mcp.AddTool.
func NewValidateHandler(gates map[string]*gate.Gate) func(context.Context, *mcp.CallToolRequest, ValidateInput) (*mcp.CallToolResult, models.Outcome, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ValidateInput) (*mcp.CallToolResult, models.Outcome, error) {
		g, ok := gates[input.GateName]
		if !ok {
			return nil, models.Outcome{}, errors.New("gate not found: " + input.GateName)
		}

		outcome := g.Evaluate(input.Text)
		outcome.ID = input.EventID
		if outcome.ID == "" {
			outcome.ID = uuid.NewString()
		}

		return nil, outcome, nil
	}
}
