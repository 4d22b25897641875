package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"Not found", fmt.Errorf("interview abc: %w", ErrNotFound), http.StatusNotFound},
		{"Invalid state", fmt.Errorf("interview is completed: %w", ErrInvalidState), http.StatusBadRequest},
		{"Rate limited", fmt.Errorf("limit of 5 reached: %w", ErrRateLimited), http.StatusTooManyRequests},
		{"Unauthorized", fmt.Errorf("bad credentials: %w", ErrUnauthorized), http.StatusUnauthorized},
		{"Upstream failure", upstreamErr("gemini", "generate", errors.New("503")), http.StatusBadGateway},
		{"Wrapped upstream failure", fmt.Errorf("feedback: %w", upstreamErr("storage", "upload", errors.New("timeout"))), http.StatusBadGateway},
		{"Unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("HTTPStatus(%v) = %d, expected %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := upstreamErr("realtime", "connect", cause)

	if !errors.Is(err, cause) {
		t.Error("UpstreamError should unwrap to its cause")
	}
	if err.Error() != "realtime: connect: connection refused" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
}
