package server

import (
	"errors"
	"net/http"
)

// Sentinel errors a [Service] may return. The handler maps them to status
// codes with errors.Is.
var (
	ErrMissingSubject = errors.New("uid is required")
	ErrMissingTarget  = errors.New("server_name is required")
	ErrInvalidSubject = errors.New("uid must be a positive integer")
	ErrUnknownTarget  = errors.New("unknown server_name")
	ErrNoCredentials  = errors.New("tokens missing")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingSubject),
		errors.Is(err, ErrMissingTarget),
		errors.Is(err, ErrInvalidSubject),
		errors.Is(err, ErrUnknownTarget):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		// ErrNoCredentials and anything unexpected
		return http.StatusInternalServerError
	}
}
