package api

import (
	"errors"
	"fmt"

	"github.com/opsbookhq/opsbook/internal/common"
)

// HTTPError is a non-retryable client error (4xx other than auth/not-found)
// carrying the server-provided message for display to the user.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the error should be left pending for a later
// attempt (server down, network unreachable, timeout).
func IsRetryable(err error) bool {
	return errors.Is(err, common.ErrUnavailable)
}
