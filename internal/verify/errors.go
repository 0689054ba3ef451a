// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"errors"
	"fmt"

	"github.com/channi23/OrangeLens/pkg/types"
)

// Sentinel errors returned by the Orchestrator.
var (
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("a verification is already in progress")

	// ErrNothingToRetry is returned by Retry before any submission.
	ErrNothingToRetry = errors.New("nothing to retry")

	// ErrNoImageForRetry is returned when the last submission needed an
	// image that could not be loaded.
	ErrNoImageForRetry = errors.New("no image available for retry")
)

// InputValidationError reports a request that must not be submitted.
type InputValidationError = types.ValidationError

// NetworkError reports a request that never produced an HTTP response:
// DNS, connect, TLS or timeout failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response. Body holds the raw response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("verification service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("verification service returned %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// ParseError reports a 2xx response whose body is not a JSON object.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing verification response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
