package trace

import (
	"context"

	"github.com/guardgate/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

// Record is one append-only observability entry, emitted once per pipeline stage.
type Record struct {
	RequestID string       `json:"request_id"`
	Stage     models.Stage `json:"stage"`
	CheckName string       `json:"check_name,omitempty"`
	Accepted  bool         `json:"accepted"`
	ElapsedMs int64        `json:"elapsed_ms"`
}

// Recorder consumes stage records. Implementations must never fail the
// pipeline: recording errors are logged and swallowed.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// LogRecorder writes stage records as structured log lines.
type LogRecorder struct {
	logger *zerolog.Logger
}

func NewLogRecorder(logger *zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, rec Record) {
	ev := r.logger.Info().
		Str("request_id", rec.RequestID).
		Str("stage", string(rec.Stage)).
		Bool("accepted", rec.Accepted).
		Int64("elapsed_ms", rec.ElapsedMs)

	if rec.CheckName != "" {
		ev = ev.Str("check_name", rec.CheckName)
	}

	ev.Msg("stage record")
}

// MultiRecorder fans one record out to several recorders.
type MultiRecorder struct {
	recorders []Recorder
}

func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

func (m *MultiRecorder) Record(ctx context.Context, rec Record) {
	for _, r := range m.recorders {
		r.Record(ctx, rec)
	}
}

// NopRecorder discards records. Used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, rec Record) {}
