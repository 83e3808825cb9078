package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error wraps an upstream failure (transport, timeout, non-2xx) with the
// provider that produced it. Timeouts are deliberately not a separate
// class: they take the same fallback path as any other provider failure.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the failure was a deadline or network
// timeout, used only to pick between 500 and 504 at the HTTP edge.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
