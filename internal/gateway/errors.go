package gateway

import (
	"errors"
	"fmt"
)

// ErrCredentialRejected is returned when the course backend answers 401.
// By the time the caller sees it the session has been cleared and
// subscribers have been notified.
var ErrCredentialRejected = errors.New("credential rejected by course backend")

// StatusError is a non-2xx, non-401 HTTP response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// HTTPStatus returns the backend's status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// ErrorClass implements the metrics classifier.
func (e *StatusError) ErrorClass() string {
	return fmt.Sprintf("status_%dxx", e.StatusCode/100)
}

// EnvelopeError is a 2xx response whose envelope code is not 200.
type EnvelopeError struct {
	Path    string
	Code    int
	Message string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%s: backend code %d: %s", e.Path, e.Code, e.Message)
}

// ErrorClass implements the metrics classifier.
func (e *EnvelopeError) ErrorClass() string { return "envelope" }
