package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/macrosnap/macrosnap/internal/events"
	"github.com/macrosnap/macrosnap/internal/metrics"
	"github.com/macrosnap/macrosnap/internal/nutrition"
	"github.com/macrosnap/macrosnap/internal/provider"
)

// HistoryStore persists accepted estimates as meal history. Failures are
// logged, never surfaced: history is a side effect of analysis.
type HistoryStore interface {
	SaveMeal(ctx context.Context, userID uuid.UUID, est *nutrition.MacroEstimate, providerID, model, mode string) error
}

// EventPublisher emits analysis lifecycle events. A nil publisher is
// valid and disables publishing.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, ev events.AnalysisCompleted) error
}

// Result is an accepted estimate annotated with the provider that
// produced it.
type Result struct {
	Estimate *nutrition.MacroEstimate
	Provider string
	Model    string
	Mode     string
}

// Orchestrator drives one analysis request end to end: admission, mode
// selection, provider invocation with confidence-gated fallback, and
// finalization. Provider calls within a request are strictly sequential
// because the fallback decision depends on the primary's outcome.
type Orchestrator struct {
	gate      *Gate
	primary   provider.Adapter
	secondary provider.Adapter // nil when not configured
	text      provider.Adapter
	ledger    Ledger
	history   HistoryStore   // nil disables meal history
	publisher EventPublisher // nil disables events
}

// NewOrchestrator creates a new Orchestrator. secondary may be nil;
// text defaults to primary when nil.
func NewOrchestrator(gate *Gate, primary, secondary, text provider.Adapter, ledger Ledger, history HistoryStore, publisher EventPublisher) *Orchestrator {
	if text == nil {
		text = primary
	}
	return &Orchestrator{
		gate:      gate,
		primary:   primary,
		secondary: secondary,
		text:      text,
		ledger:    ledger,
		history:   history,
		publisher: publisher,
	}
}

// Analyze runs the full state machine for one request.
func (o *Orchestrator) Analyze(ctx context.Context, req *Request, authUserID uuid.UUID) (*Result, error) {
	if err := o.gate.Admit(ctx, req, authUserID); err != nil {
		metrics.AdmissionRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	var res *Result
	var err error
	if req.Mode() == ModeImage {
		res, err = o.analyzeImage(ctx, req)
	} else {
		res, err = o.analyzeText(ctx, req)
	}
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("none", req.Mode(), "failure").Inc()
		return nil, err
	}

	return o.finalize(ctx, req, authUserID, res)
}

func (o *Orchestrator) analyzeImage(ctx context.Context, req *Request) (*Result, error) {
	primaryEst, primaryErr := o.callImage(ctx, o.primary, req)

	switch decidePrimary(primaryEst, primaryErr, o.secondary != nil) {
	case actionAccept:
		return &Result{Estimate: primaryEst, Provider: o.primary.Name(), Model: o.primary.Model(), Mode: ModeImage}, nil

	case actionFail:
		return nil, fmt.Errorf("%w: %w", ErrUnableToEstimate, primaryErr)

	case actionEscalate:
		metrics.FallbackTotal.WithLabelValues(escalationCause(primaryErr)).Inc()
		secondaryEst, secondaryErr := o.callImage(ctx, o.secondary, req)
		est, fromSecondary, err := resolveEscalation(primaryEst, secondaryEst, secondaryErr)
		if err != nil {
			return nil, err
		}
		if fromSecondary {
			return &Result{Estimate: est, Provider: o.secondary.Name(), Model: o.secondary.Model(), Mode: ModeImage}, nil
		}
		return &Result{Estimate: est, Provider: o.primary.Name(), Model: o.primary.Model(), Mode: ModeImage}, nil
	}

	return nil, ErrUnableToEstimate
}

func (o *Orchestrator) analyzeText(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	est, err := o.text.AnalyzeText(ctx, req.Description)
	metrics.ProviderCallDuration.WithLabelValues(o.text.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		// Text mode has no fallback adapter.
		return nil, fmt.Errorf("%w: %w", ErrUnableToEstimate, err)
	}
	return &Result{Estimate: est, Provider: o.text.Name(), Model: o.text.Model(), Mode: ModeText}, nil
}

func (o *Orchestrator) callImage(ctx context.Context, a provider.Adapter, req *Request) (*nutrition.MacroEstimate, error) {
	start := time.Now()
	est, err := a.AnalyzeImage(ctx, req.ImageURL, req.Description)
	metrics.ProviderCallDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("provider call failed", "provider", a.Name(), "error", err)
	}
	return est, err
}

// finalize applies the not-food check, records billable usage for the
// provider that produced the accepted result, and persists history.
func (o *Orchestrator) finalize(ctx context.Context, req *Request, userID uuid.UUID, res *Result) (*Result, error) {
	if res.Estimate.IsZero() {
		metrics.AnalysesTotal.WithLabelValues(res.Provider, res.Mode, "not_food").Inc()
		return nil, fmt.Errorf("%w: the input does not appear to contain food", ErrUnableToEstimate)
	}

	if err := o.ledger.RecordUsage(ctx, userID, res.Provider); err != nil {
		// The caller already has a usable answer; losing one ledger tick
		// is preferable to failing the request.
		slog.Error("recording usage", "error", err, "provider", res.Provider)
	}

	if o.history != nil {
		if err := o.history.SaveMeal(ctx, userID, res.Estimate, res.Provider, res.Model, res.Mode); err != nil {
			slog.Error("saving meal history", "error", err)
		}
	}

	if o.publisher != nil {
		ev := events.AnalysisCompleted{
			UserID:     userID.String(),
			Provider:   res.Provider,
			Model:      res.Model,
			Mode:       res.Mode,
			Calories:   res.Estimate.Calories,
			Confidence: string(res.Estimate.Confidence),
			Timestamp:  time.Now().UTC(),
		}
		if err := o.publisher.PublishAnalysisCompleted(ctx, ev); err != nil {
			slog.Warn("publishing analysis event", "error", err)
		}
	}

	metrics.AnalysesTotal.WithLabelValues(res.Provider, res.Mode, "success").Inc()
	return res, nil
}

func rejectionReason(err error) string {
	switch {
	case err == ErrIdentityMismatch:
		return "identity_mismatch"
	case err == ErrRateLimitExceeded:
		return "rate_limit"
	case err == ErrCostLimitExceeded:
		return "cost_limit"
	default:
		return "validation"
	}
}

func escalationCause(primaryErr error) string {
	if primaryErr != nil {
		return "primary_failure"
	}
	return "low_confidence"
}
