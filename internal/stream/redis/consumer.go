package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/orchestrator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Consumer struct {
	client        *redis.Client
	stream        string
	outcomeStream string
	groupID       string
	consumerName  string
	orchestrator  *orchestrator.Orchestrator
	logger        *zerolog.Logger
}

func NewConsumer(client *redis.Client, stream string, outcomeStream string, groupID string, consumerName string, orch *orchestrator.Orchestrator, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		outcomeStream: outcomeStream,
		groupID:       groupID,
		consumerName:  consumerName,
		orchestrator:  orch,
		logger:        logger,
	}
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.groupID, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.stream).
		Str("group", c.groupID).
		Str("consumer", c.consumerName).
		Msg("Consumer started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupID,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// timeout, no message -> loop again
				continue
			}

			if ctx.Err() != nil {
				return ctx.Err() // context cancelled during block
			}

			c.logger.Error().Err(err).Msg("Failed to read from stream")
			continue
		}

		for _, msg := range msgs[0].Messages {
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) Stop() error {
	// No-op
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	c.logger.Info().Str("id", msg.ID).Msg("Message received")

	// decode json
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("Missing payload field")
		c.ack(ctx, msg.ID)
		return
	}

	var genRequest models.GenerationRequest
	if err := json.Unmarshal([]byte(payload), &genRequest); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to decode message")
		c.ack(ctx, msg.ID) // bad message, ACK to skip it
		return
	}

	genCtx := normalize(genRequest)
	outcome, err := c.orchestrator.Run(ctx, genCtx)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("id", msg.ID).
			Str("request_id", genCtx.RequestID).
			Msg("Pipeline failed")
	}

	c.logger.Info().
		Str("id", msg.ID).
		Bool("accepted", outcome.Accepted).
		Str("stage", string(outcome.Stage)).
		Msg("Pipeline complete")

	c.publish(ctx, outcome)
	c.ack(ctx, msg.ID)
}

// publish appends the outcome to the result stream, if one is configured.
func (c *Consumer) publish(ctx context.Context, outcome models.Outcome) {
	if c.outcomeStream == "" {
		return
	}

	body, err := json.Marshal(outcome)
	if err != nil {
		c.logger.Error().Err(err).Str("request_id", outcome.ID).Msg("Failed to encode outcome")
		return
	}

	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.outcomeStream,
		Values: map[string]any{"payload": string(body)},
	}).Err()
	if err != nil {
		c.logger.Error().Err(err).Str("request_id", outcome.ID).Msg("Failed to publish outcome")
	}
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.stream, c.groupID, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("Failed to ACK message")
	}
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
