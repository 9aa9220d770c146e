package application

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                    nil,
		"unauthorized":        fmt.Errorf("%w: only the owner may edit", ErrUnauthorized),
		"not_found":           ErrNotFound,
		"already_exists":      ErrAlreadyExists,
		"conflict":            fmt.Errorf("create booking: %w", ErrConflict),
		"invalid_credentials": ErrInvalidCredentials,
		"session_expired":     ErrSessionExpired,
		"session_revoked":     ErrSessionRevoked,
		"validation":          &ValidationError{FieldErrors: map[string]string{"title": "title is required"}},
		"unexpected":          io.ErrUnexpectedEOF,
	}

	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
