package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/guardgate/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

// InputRecord is one line of a batch file: a decoded request or a parse error.
type InputRecord struct {
	Request    models.GenerationRequest
	LineNumber int
	Error      error
}

// Reader streams GenerationRequests out of an NDJSON file, one JSON object
// per line. Blank lines are skipped; malformed lines surface as Record.Error
// so a single bad line never aborts the batch.
type Reader struct {
	source io.Reader
	logger *zerolog.Logger
}

func NewReader(source io.Reader, logger *zerolog.Logger) *Reader {
	return &Reader{
		source: source,
		logger: logger,
	}
}

func (r *Reader) ReadAll(ctx context.Context) <-chan InputRecord {
	out := make(chan InputRecord)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r.source)
		line := 0
		for scanner.Scan() {
			line++

			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			record := InputRecord{LineNumber: line}
			if err := json.Unmarshal([]byte(text), &record.Request); err != nil {
				r.logger.Error().Err(err).Int("line", line).Msg("Failed to decode batch line")
				record.Error = err
			}

			select {
			case out <- record:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			r.logger.Error().Err(err).Msg("Batch read failed")
		}
	}()

	return out
}
