package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned by providers when the API responds with HTTP 401.
// Callers can check for it using errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMissingToken is returned before any request is made when no API key is configured.
var ErrMissingToken = errors.New("circleci API key missing")

// ErrNoWorkflow is returned when an action needs a workflow and the pipeline has none.
var ErrNoWorkflow = errors.New("pipeline has no workflows")

// TransportError reports a request that did not produce a usable response:
// connection failures and HTTP error statuses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError carries a non-2xx response status.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return "circleci API error: " + e.Status
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPStatusError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrUnauthorized
	}
	return nil
}

// DecodeError reports a response body that does not match the expected schema,
// including malformed timestamps and unknown enum values.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ActionError reports a failed user action such as retry-from-failed.
type ActionError struct {
	Action     string
	WorkflowID string
	Err        error
}

func (e *ActionError) Error() string {
	if e.WorkflowID == "" {
		return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s of workflow %s failed: %v", e.Action, e.WorkflowID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
