package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind classifies pipeline errors by how the orchestrator handles them.
type Kind string

const (
	// KindProviderUnavailable marks a failed or timed-out external call.
	// Recovered locally: the stage substitutes an empty result and the
	// pipeline continues degraded.
	KindProviderUnavailable Kind = "provider_unavailable"
	// KindMalformedModelOutput marks an unparseable text-generation
	// response. Surfaced to the caller; the run aborts since the
	// structured fields are the report.
	KindMalformedModelOutput Kind = "malformed_model_output"
	// KindInvalidInput marks a query rejected before any external call.
	KindInvalidInput Kind = "invalid_input"
	// KindCacheUnavailable marks a store failure. Logged; the pipeline
	// proceeds without caching.
	KindCacheUnavailable Kind = "cache_unavailable"
)

// PipelineError carries an error kind plus a user-safe message. The
// wrapped error is for logs only and never shown to the user.
type PipelineError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and a user-safe message.
func NewError(kind Kind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of an error, or "" when it carries none.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// UserMessage returns the user-safe message for an error. Raw upstream
// payloads and stack traces never reach the caller through this path.
func UserMessage(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "internal error"
}

// IsTransient returns true if the error (or any error in its chain)
// matches common transient network patterns. HTTP clients use this to
// decide whether a backoff retry is worthwhile.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true for server-side statuses that are
// safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
