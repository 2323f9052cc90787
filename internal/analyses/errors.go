package analyses

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing row. Pollers treat it as "still
	// processing", not as a database failure.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks terminal input rejections; no job is created.
	ErrValidation = errors.New("validation failed")

	// ErrLegacyShape marks the known-obsolete response format. It signals
	// a server-side misconfiguration, never a data problem.
	ErrLegacyShape = errors.New("legacy response shape, assistant configuration is outdated")

	// ErrWatchTimeout is the base error for exhausted watch budgets; the
	// wrapped message distinguishes a row that never appeared from one
	// that never became ready.
	ErrWatchTimeout = errors.New("timed out waiting for analysis")

	// ErrPersistence marks a failed job-record write; the wrapping message
	// names the write that failed.
	ErrPersistence = errors.New("persistence failed")
)

// ParseError reports that no JSON object could be located or decoded in
// the model's response text.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse analysis response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse analysis response: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

const (
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeConfiguration = "CONFIGURATION_ERROR"
	ErrorCodeUpstream      = "UPSTREAM_ERROR"
	ErrorCodeParse         = "PARSE_ERROR"
	ErrorCodePersistence   = "PERSISTENCE_ERROR"
	ErrorCodeTimeout       = "POLLING_TIMEOUT"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)
