package jira

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for fatal response classifications.
var (
	// ErrUnauthenticated indicates the tracker answered with markup where
	// JSON was expected, which almost always means the ambient session has
	// expired and the user needs to log in again.
	ErrUnauthenticated = errors.New("tracker returned a page instead of JSON, likely not authenticated")

	// ErrMalformedResponse indicates a 2xx response whose body could not be
	// parsed as JSON and does not look like markup.
	ErrMalformedResponse = errors.New("tracker returned a malformed response")
)

// StatusError is a fatal non-2xx response from the tracker. Statuses that
// signal throttling or temporary unavailability are retried and never
// surface as a StatusError unless all attempts are exhausted.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker rejected %s: HTTP %d", e.Endpoint, e.StatusCode)
}

// transientError wraps a failure that is worth retrying. The wait field
// carries the backoff computed at classification time (server-directed via
// Retry-After, or attempt-scaled).
type transientError struct {
	err  error
	wait time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func asTransient(err error) (*transientError, bool) {
	var te *transientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
