package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors used across services. Endpoints translate these into
// HTTP status codes; the orchestrator uses them to decide between
// failing a session and continuing without the offending input.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidState = errors.New("invalid state for operation")
	ErrRateLimited  = errors.New("daily interview limit reached")
	ErrUnauthorized = errors.New("unauthorized")
)

// UpstreamError wraps a failure from an external provider (realtime
// voice endpoint, narrative model, blob storage). Callers that can
// degrade gracefully check for it with errors.As.
type UpstreamError struct {
	Provider string
	Op       string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstreamErr(provider, op string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Op: op, Err: err}
}

// HTTPStatus maps a service error to the status code endpoints return.
func HTTPStatus(err error) int {
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
