package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/guardgate/guard-agent/internal/api/middleware"
	"github.com/guardgate/guard-agent/internal/gate"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/orchestrator"
	"github.com/guardgate/guard-agent/internal/schema"
	"github.com/rs/zerolog"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	gates        map[string]*gate.Gate
	logger       *zerolog.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, gates map[string]*gate.Gate, logger *zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		gates:        gates,
		logger:       logger,
	}
}

// POST /api/v1/generate
// Body: GenerationRequest
// Returns: Outcome
func (h *Handler) Generate(req *restful.Request, resp *restful.Response) {
	var genRequest models.GenerationRequest
	if err := req.ReadEntity(&genRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	ctx := req.Request.Context()
	genCtx := normalize(genRequest)

	h.logger.Info().
		Str("event_id", genRequest.EventID).
		Str("request_id", genCtx.RequestID).
		Bool("structured", genRequest.Schema != nil).
		Msg("Start pipeline")

	outcome, err := h.orchestrator.Run(ctx, genCtx)
	if err != nil {
		var genErr *orchestrator.GenerationError
		var parseErr *schema.ParseError

		switch {
		case errors.As(err, &genErr) && genErr.TimedOut:
			middleware.HandleError(resp, err, http.StatusGatewayTimeout)
		case errors.As(err, &genErr):
			middleware.HandleError(resp, err, http.StatusBadGateway)
		case errors.As(err, &parseErr):
			// Terminal structured-output failure: the outcome still carries
			// the last raw text for inspection.
			resp.WriteHeaderAndEntity(http.StatusUnprocessableEntity, outcome)
		default:
			middleware.HandleError(resp, err, http.StatusBadRequest)
		}
		return
	}

	h.logger.Info().
		Str("request_id", outcome.ID).
		Bool("accepted", outcome.Accepted).
		Str("stage", string(outcome.Stage)).
		Msg("Pipeline complete")

	resp.WriteHeaderAndEntity(http.StatusOK, outcome)
}

// POST /api/v1/validate/{gate_name}
// Runs a single named gate over the supplied text, without generation.
func (h *Handler) ValidateGate(req *restful.Request, resp *restful.Response) {
	gateName := req.PathParameter("gate_name")

	g, ok := h.gates[gateName]
	if !ok {
		h.logger.Warn().Str("gate_name", gateName).Msg("Gate not found")
		middleware.HandleError(resp, errors.New("gate not found"), http.StatusNotFound)
		return
	}

	var genRequest models.GenerationRequest
	if err := req.ReadEntity(&genRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	genCtx := normalize(genRequest)

	outcome := g.Evaluate(genCtx.Prompt)
	outcome.ID = genCtx.RequestID

	h.logger.Info().
		Str("gate_name", gateName).
		Str("request_id", outcome.ID).
		Bool("accepted", outcome.Accepted).
		Msg("Validation complete")

	resp.WriteHeaderAndEntity(http.StatusOK, outcome)
}

// Health handler GET API /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	healthResponse := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}

	resp.WriteHeaderAndEntity(http.StatusOK, healthResponse)
}

func normalize(req models.GenerationRequest) models.GenerationContext {
	id := req.EventID
	if id == "" {
		id = uuid.NewString()
	}

	return models.GenerationContext{
		RequestID: id,
		Prompt:    req.Prompt,
		Schema:    req.Schema,
		CreatedAt: time.Now(),
	}
}
