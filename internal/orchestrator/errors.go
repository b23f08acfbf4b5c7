package orchestrator

import (
	"fmt"
)

// GenerationError reports that the external generation capability errored or
// timed out. Client-level retries are already exhausted by the time this is
// returned.
type GenerationError struct {
	Err      error
	TimedOut bool
}

func (e *GenerationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("generation timed out: %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
