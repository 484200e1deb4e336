package relay

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned for bodies that cannot become an Event.
var ErrMalformedPayload = errors.New("invalid payload")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// UpstreamCompletionError is a completion provider failure. StatusCode and
// Body are what the caller of the relay must receive, unchanged.
type UpstreamCompletionError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UpstreamCompletionError) Error() string {
	return fmt.Sprintf("completion failed: status=%d: %v", e.StatusCode, e.Err)
}

func (e *UpstreamCompletionError) Unwrap() error { return e.Err }

// RelayDeliveryError is a send failure other than an unreachable user.
type RelayDeliveryError struct {
	Err error
}

func (e *RelayDeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *RelayDeliveryError) Unwrap() error { return e.Err }
