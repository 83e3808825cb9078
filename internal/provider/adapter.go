package provider

import (
	"context"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// Adapter wraps one external inference backend. Implementations issue a
// single outbound call per invocation, bounded by the adapter's own
// timeout, and normalize the raw model text before returning. Failures
// are either *Error (the call could not be completed) or
// *nutrition.MalformedResponseError (the call succeeded but the payload
// did not normalize).
type Adapter interface {
	// Name returns the adapter's identifier, used for cost attribution.
	Name() string

	// Model returns the upstream model identifier for response annotation.
	Model() string

	// AnalyzeImage estimates macros from a meal photo. A non-empty hint
	// is embedded as trusted user context.
	AnalyzeImage(ctx context.Context, imageURL, hint string) (*nutrition.MacroEstimate, error)

	// AnalyzeText estimates macros from a free-text meal description.
	AnalyzeText(ctx context.Context, description string) (*nutrition.MacroEstimate, error)
}
