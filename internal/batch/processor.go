package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guardgate/guard-agent/internal/models"
	"github.com/guardgate/guard-agent/internal/orchestrator"
	"github.com/rs/zerolog"
)

// Processor runs batch records through the pipeline with a bounded worker
// pool. Each worker owns its own request; the orchestrator itself is
// stateless, so sharing one instance is safe.
type Processor struct {
	orchestrator *orchestrator.Orchestrator
	workers      int
	logger       *zerolog.Logger
}

func NewProcessor(orch *orchestrator.Orchestrator, workers int, logger *zerolog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}

	return &Processor{
		orchestrator: orch,
		workers:      workers,
		logger:       logger,
	}
}

func (p *Processor) Process(ctx context.Context, records []InputRecord) <-chan models.Outcome {
	jobs := make(chan InputRecord)
	out := make(chan models.Outcome, p.workers)

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range jobs {
				p.processOne(ctx, record, out)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, record := range records {
			if record.Error != nil {
				p.logger.Warn().Int("line", record.LineNumber).Msg("Skipping malformed record")
				continue
			}

			select {
			case jobs <- record:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (p *Processor) processOne(ctx context.Context, record InputRecord, out chan<- models.Outcome) {
	id := record.Request.EventID
	if id == "" {
		id = uuid.NewString()
	}

	genCtx := models.GenerationContext{
		RequestID: id,
		Prompt:    record.Request.Prompt,
		Schema:    record.Request.Schema,
		CreatedAt: time.Now(),
	}

	outcome, err := p.orchestrator.Run(ctx, genCtx)
	if err != nil {
		p.logger.Error().
			Err(err).
			Int("line", record.LineNumber).
			Str("request_id", id).
			Msg("Pipeline failed for record")
	}

	select {
	case out <- outcome:
	case <-ctx.Done():
	}
}
