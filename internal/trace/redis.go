package trace

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamRecorder appends stage records to a Redis stream so an external
// dashboard or collector can consume them.
type StreamRecorder struct {
	client *redis.Client
	stream string
	logger *zerolog.Logger
}

func NewStreamRecorder(client *redis.Client, stream string, logger *zerolog.Logger) *StreamRecorder {
	return &StreamRecorder{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (r *StreamRecorder) Record(ctx context.Context, rec Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to encode stage record")
		return
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{"payload": string(payload)},
	}).Err()
	if err != nil {
		r.logger.Error().Err(err).Str("stream", r.stream).Msg("failed to append stage record")
	}
}
