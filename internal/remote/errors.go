package remote

import (
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote API %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote API %s returned %d", e.Endpoint, e.StatusCode)
}

// Transient reports whether the failure is an upstream timeout or
// unavailability that a retry of the same request may resolve.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsTransient reports whether err is worth retrying without advancing the
// cursor: a transient APIError or a network-level timeout. Everything else
// (auth failures, malformed responses, decode errors) is fatal to the run.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
