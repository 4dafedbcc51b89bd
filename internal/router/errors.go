package router

import (
	"errors"
	"fmt"
	"strings"
)

// TransientNetworkError is a failure that may clear up on its own: a
// connection error or a non-200 status. It is retried under backoff.
type TransientNetworkError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Body       []byte
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s router request failed: %v", e.Endpoint, e.Err)
	}
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("%s router http %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s router http %d: %s", e.Endpoint, e.StatusCode, truncate(b, 256))
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is a 200 response whose body is not a valid router
// response. Retrying cannot fix it.
type MalformedResponseError struct {
	Endpoint string
	Body     []byte
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("failed to decode %s router response: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func isTransient(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
