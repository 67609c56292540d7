package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry: rate limits, 5xx responses,
// network timeouts. The job state machine reschedules jobs that fail with a
// transient error; everything else fails fast.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// ValidationError marks extracted or submitted data that cannot be processed.
// Retrying the same input cannot help, so these never reschedule a job.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError reports a bad field in candidate or request data.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a database failure. Writes are not assumed
// idempotent, so a job failing here records the error and fails without
// automatic retry; the maintenance sweep picks the URL up again later.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError tags a store failure with the operation that hit it.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsTransient reports whether the error (or anything in its chain) is a
// TransientError or matches common transient network patterns. Validation and
// persistence errors are never transient, even when they wrap one.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// An open circuit means the provider may recover; retry later.
	if errors.Is(err, ErrCircuitOpen) {
		return true
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

	// Wrapped HTTP client errors lose their type; fall back to message
	// patterns.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status code indicates a
// server-side condition worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
