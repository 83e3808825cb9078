package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macrosnap/macrosnap/internal/provider"
)

func TestToAPIError(t *testing.T) {
	timeoutErr := &provider.Error{Provider: "gemini", Err: context.DeadlineExceeded}

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", newValidationError("bad input"), http.StatusBadRequest},
		{"identity mismatch", ErrIdentityMismatch, http.StatusForbidden},
		{"rate limit", ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"cost limit", ErrCostLimitExceeded, http.StatusTooManyRequests},
		{"image unreachable", &ImageUnreachableError{URL: "http://x", StatusCode: 404}, http.StatusBadRequest},
		{"unable to estimate", fmt.Errorf("%w: %w", ErrUnableToEstimate, errors.New("boom")), http.StatusInternalServerError},
		{"provider timeout", fmt.Errorf("%w: %w", ErrUnableToEstimate, timeoutErr), http.StatusGatewayTimeout},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, toAPIError(tt.err).Code)
		})
	}
}
