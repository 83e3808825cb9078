package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the usage ledger: per-user daily call counts plus the
// global monthly spend estimate. "Today" is the server-local calendar
// day.
type Service struct {
	store Store
	costs map[string]decimal.Decimal

	// now is swappable in tests.
	now func() time.Time
}

// NewService creates a ledger Service. costs maps provider identifiers
// to their per-call cost estimate.
func NewService(store Store, costs map[string]decimal.Decimal) *Service {
	return &Service{store: store, costs: costs, now: time.Now}
}

// DailyCount returns the user's call count for today.
func (s *Service) DailyCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.DailyCalls(ctx, userID, s.today())
}

// MonthlyCost returns the estimated spend across all users for the
// current calendar month.
func (s *Service) MonthlyCost(ctx context.Context) (decimal.Decimal, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return s.store.MonthCost(ctx, monthStart)
}

// RecordUsage adds one call and the provider's per-call cost to today's
// record for the user. Called exactly once per successfully finalized
// request, so the ledger reflects billable inference only.
func (s *Service) RecordUsage(ctx context.Context, userID uuid.UUID, providerID string) error {
	cost, ok := s.costs[providerID]
	if !ok {
		return fmt.Errorf("no cost configured for provider %q", providerID)
	}
	return s.store.AddUsage(ctx, userID, s.today(), cost)
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
