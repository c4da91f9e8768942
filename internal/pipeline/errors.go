package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks uploads rejected before any stage runs. The
// wrapped message is safe to surface verbatim to the caller.
var ErrInvalidInput = errors.New("invalid input")

// Stage names recorded on failed documents.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageAnalyze = "analyze"
	StagePersist = "persist"
)

// StageError reports which pipeline stage failed and why.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
