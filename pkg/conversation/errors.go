package conversation

import (
	"fmt"
	"time"
)

// BackendUnavailableError wraps a transport or service failure of a backend.
type BackendUnavailableError struct {
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: %v", e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// BackendTimeoutError means the backend did not answer within After.
type BackendTimeoutError struct {
	After time.Duration
}

func (e *BackendTimeoutError) Error() string {
	return fmt.Sprintf("backend did not respond within %s", e.After)
}
