package monitor

import "fmt"

// AuthError represents authentication and authorization failures against the
// torrent client, including 401 Unauthorized and 403 Forbidden responses.
// It is fatal to connection establishment and is not retried by the monitor.
type AuthError struct {
	Operation string // The operation that required authentication
	Err       error  // Underlying error, if any
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s", e.Operation)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ConnError represents transient connectivity and protocol failures
// including 5xx responses, connection refusals and timeouts. A poll cycle
// that hits one leaves the snapshot untouched and flags the monitor
// unavailable until a later cycle succeeds.
type ConnError struct {
	Operation  string // The operation that failed (e.g. "torrents_info")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Err        error  // Underlying error, if any
}

func (e *ConnError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("connection error during %s (HTTP %d)", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("connection error during %s", e.Operation)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
