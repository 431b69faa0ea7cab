package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the preprocessing pipelines. Match them with errors.Is.
var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrUnreadableDocument   = errors.New("unreadable document")
	ErrInvalidChunkConfig   = errors.New("invalid chunk config")
	ErrEmbeddingService     = errors.New("embedding service error")
	ErrProvision            = errors.New("provision error")
	ErrBulkLoad             = errors.New("bulk load error")
	ErrIndexRegistration    = errors.New("index registration error")
	ErrAgentGateway         = errors.New("agent gateway error")
	ErrUnsupportedByDialect = errors.New("not supported by warehouse dialect")
)

// Stage names used in StageError and in orchestrator reports.
const (
	StageLoadDocument  = "LOAD_DOCUMENT"
	StageChunk         = "CHUNK"
	StageEmbed         = "EMBED"
	StageCheckExists   = "CHECK_EXISTS"
	StageProvision     = "PROVISION"
	StageLoad          = "LOAD"
	StageRegisterIndex = "REGISTER_INDEX"
	StageAgent         = "AGENT"
)

// StageError carries the failing stage, the error kind and the upstream cause.
// Status is the upstream status code when one is known (embedding/agent calls), else 0.
type StageError struct {
	Stage  string
	Kind   error
	Status int
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError wraps err as kind at stage. A nil err yields a kind-only error.
func NewStageError(stage string, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
