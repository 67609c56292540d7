package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("scrape failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("invalid input: missing field")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ValidationError(t *testing.T) {
	err := NewValidationError("target_url", "not a valid URL")
	if IsTransient(err) {
		t.Error("validation error should never be transient")
	}
}

func TestIsTransient_PersistenceError(t *testing.T) {
	// Even a persistence error wrapping a timeout must not be retried,
	// since the write may have landed.
	inner := NewTransientError(errors.New("i/o timeout"), 0)
	err := NewPersistenceError("create truck", inner)
	if IsTransient(err) {
		t.Error("persistence error should never be transient")
	}
}

func TestIsTransient_OpenCircuit(t *testing.T) {
	if !IsTransient(ErrCircuitOpen) {
		t.Error("open circuit should be transient: the provider may recover")
	}
	wrapped := fmt.Errorf("fetch page: %w", ErrCircuitOpen)
	if !IsTransient(wrapped) {
		t.Error("wrapped open-circuit error should be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("write tcp: %w", syscall.ECONNRESET),
		fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED),
	} {
		if !IsTransient(err) {
			t.Errorf("expected %v to be transient", err)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range patterns {
		if !IsTransient(errors.New(p)) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}

	permanent := []int{200, 201, 400, 401, 403, 404, 405, 409, 422}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}
	if te.StatusCode != 500 {
		t.Errorf("expected StatusCode 500, got %d", te.StatusCode)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("name", "missing")
	if err.Error() != "invalid name: missing" {
		t.Errorf("unexpected message %q", err.Error())
	}

	bare := NewValidationError("", "record rejected")
	if bare.Error() != "record rejected" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestPersistenceError_Unwrap(t *testing.T) {
	inner := errors.New("constraint violation")
	err := NewPersistenceError("update truck", inner)
	if !errors.Is(err, inner) {
		t.Error("PersistenceError.Unwrap should return the inner error")
	}
}
