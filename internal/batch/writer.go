package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/guardgate/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

// Writer emits outcomes in the chosen format: "jsonl" writes one JSON object
// per line, "summary" counts accepted/rejected and prints totals on Close.
type Writer struct {
	out      *bufio.Writer
	format   string
	logger   *zerolog.Logger
	total    int
	accepted int
}

func NewWriter(out io.Writer, format string, logger *zerolog.Logger) (*Writer, error) {
	switch format {
	case "jsonl", "summary":
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	return &Writer{
		out:    bufio.NewWriter(out),
		format: format,
		logger: logger,
	}, nil
}

func (w *Writer) Write(outcome models.Outcome) error {
	w.total++
	if outcome.Accepted {
		w.accepted++
	}

	if w.format != "jsonl" {
		return nil
	}

	body, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	if _, err := w.out.Write(body); err != nil {
		return err
	}
	return w.out.WriteByte('\n')
}

func (w *Writer) Close() error {
	if w.format == "summary" {
		summary := map[string]int{
			"total":    w.total,
			"accepted": w.accepted,
			"rejected": w.total - w.accepted,
		}

		body, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		if _, err := w.out.Write(body); err != nil {
			return err
		}
		if err := w.out.WriteByte('\n'); err != nil {
			return err
		}
	}

	return w.out.Flush()
}
