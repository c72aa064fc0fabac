package api

import (
	"errors"
	"net/http"

	"github.com/hoursync/hoursync/internal/jira"
	"github.com/hoursync/hoursync/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types to clients.
func MapErrorToStatusCode(err error) int {
	var statusErr *jira.StatusError

	switch {
	case errors.Is(err, jira.ErrUnauthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, jira.ErrMalformedResponse):
		return http.StatusBadGateway

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	case errors.As(err, &statusErr):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal
// details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var statusErr *jira.StatusError

	switch {
	case errors.Is(err, jira.ErrUnauthenticated):
		return "Not authenticated to the tracker, please log in again"

	case errors.Is(err, jira.ErrMalformedResponse):
		return "Tracker returned an unreadable response"

	case errors.Is(err, task.ErrQueueFull):
		return "Too many pending lookups, try again shortly"

	case errors.Is(err, task.ErrQueueClosed):
		return "Service is shutting down"

	case errors.As(err, &statusErr):
		return "Tracker rejected the request"

	default:
		return "Failed to fetch worklogs"
	}
}
