package analysis

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const minDescriptionLen = 10

// Ledger is the admission-control view of the usage ledger.
type Ledger interface {
	DailyCount(ctx context.Context, userID uuid.UUID) (int, error)
	MonthlyCost(ctx context.Context) (decimal.Decimal, error)
	RecordUsage(ctx context.Context, userID uuid.UUID, providerID string) error
}

// GateConfig holds the admission limits fixed at process start.
type GateConfig struct {
	DailyCallLimit int
	MonthlyCeiling decimal.Decimal
	ProbeTimeout   time.Duration
}

// Gate performs admission control before any paid inference: structural
// validation, identity match, quota and cost checks, and an image
// reachability probe. Strictly read-only against the ledger: counters
// are incremented only after a successful inference.
type Gate struct {
	ledger   Ledger
	cfg      GateConfig
	validate *validator.Validate
	probe    *http.Client
}

// NewGate creates a new Gate.
func NewGate(ledger Ledger, cfg GateConfig) *Gate {
	return &Gate{
		ledger:   ledger,
		cfg:      cfg,
		validate: validator.New(),
		probe:    &http.Client{Timeout: cfg.ProbeTimeout},
	}
}

// Admit checks the request against every admission rule, cheapest first.
// The identity check runs before any ledger read: a mismatched request
// must not learn anything about quota state.
func (g *Gate) Admit(ctx context.Context, req *Request, authUserID uuid.UUID) error {
	if err := g.validateShape(req); err != nil {
		return err
	}

	if req.UserID != authUserID.String() {
		return ErrIdentityMismatch
	}

	calls, err := g.ledger.DailyCount(ctx, authUserID)
	if err != nil {
		return err
	}
	if calls >= g.cfg.DailyCallLimit {
		return ErrRateLimitExceeded
	}

	monthCost, err := g.ledger.MonthlyCost(ctx)
	if err != nil {
		return err
	}
	if monthCost.GreaterThanOrEqual(g.cfg.MonthlyCeiling) {
		return ErrCostLimitExceeded
	}

	if req.ImageURL != "" {
		if err := g.probeImage(ctx, req.ImageURL); err != nil {
			return err
		}
	}

	return nil
}

func (g *Gate) validateShape(req *Request) error {
	if err := g.validate.Struct(req); err != nil {
		return newValidationError("invalid request: %v", err)
	}

	if req.ImageURL == "" && req.Description == "" {
		return newValidationError("either image_url or description is required")
	}
	if req.ImageURL == "" && len(strings.TrimSpace(req.Description)) < minDescriptionLen {
		return newValidationError("description must be at least %d characters", minDescriptionLen)
	}

	return nil
}

// probeImage sends a cheap HEAD request so an unreachable or non-image
// URL is rejected before any provider is paid to discover the same.
func (g *Gate) probeImage(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return &ImageUnreachableError{URL: url, Reason: err.Error()}
	}

	resp, err := g.probe.Do(req)
	if err != nil {
		return &ImageUnreachableError{URL: url, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ImageUnreachableError{URL: url, StatusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return &ImageUnreachableError{URL: url, Reason: "content type " + ct + " is not an image"}
	}

	return nil
}
