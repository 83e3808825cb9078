package analysis

import (
	"errors"
	"fmt"
)

// Admission and terminal errors. Validation and security errors surface
// to the caller directly; provider-level errors never do; they are
// folded into the fallback decision or ErrUnableToEstimate.
var (
	ErrIdentityMismatch  = errors.New("user id does not match authenticated identity")
	ErrRateLimitExceeded = errors.New("daily analysis limit reached")
	ErrCostLimitExceeded = errors.New("monthly cost ceiling reached")
	ErrUnableToEstimate  = errors.New("unable to estimate nutrition for this input")
)

// ValidationError reports caller-correctable input problems.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ImageUnreachableError reports that the supplied image URL did not
// answer the reachability probe with an image.
type ImageUnreachableError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *ImageUnreachableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("image unreachable (status %d): %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("image unreachable (%s): %s", e.Reason, e.URL)
}
