package registry

import (
	"fmt"
	"net/http"
)

// NetworkError means a request could not be sent or its response read
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ResponseError is a non-2xx answer from the registry
type ResponseError struct {
	Op         string
	Status     int
	StatusText string
	// Message is the registry's own explanation, when it sent one
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("registry %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("registry %s: HTTP %d: %s", e.Op, e.Status, e.StatusText)
}

func newResponseError(op string, resp *http.Response, message string) *ResponseError {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = resp.Status
	}
	return &ResponseError{
		Op:         op,
		Status:     resp.StatusCode,
		StatusText: text,
		Message:    message,
	}
}
