package waker

import (
	"errors"
	"fmt"
	"time"
)

// ErrHostUnreachable is returned by Check when the host does not answer.
var ErrHostUnreachable = errors.New("host is not reachable")

// InvalidTargetError reports a wake target that must not be used. It is a
// configuration error and is never retried.
type InvalidTargetError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %s %q: %s", e.Field, e.Value, e.Reason)
}

// WakeError reports a magic packet that could not be sent.
type WakeError struct {
	Addr string
	Err  error
}

func (e *WakeError) Error() string {
	return fmt.Sprintf("failed to send wake packet to %s: %v", e.Addr, e.Err)
}

func (e *WakeError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a host that never answered within the polling budget.
// It only follows a wake packet that was sent.
type TimeoutError struct {
	Host     string
	Attempts int
	Interval time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("host %s not reachable after %d attempts %s apart", e.Host, e.Attempts, e.Interval)
}
