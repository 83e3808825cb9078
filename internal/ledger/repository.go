package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the ledger. Days and months are
// passed in by the Service so the clock stays in one place.
type Store interface {
	DailyCalls(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
	MonthCost(ctx context.Context, monthStart time.Time) (decimal.Decimal, error)
	AddUsage(ctx context.Context, userID uuid.UUID, day time.Time, cost decimal.Decimal) error
}

// Repository handles usage_ledger PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ledger Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DailyCalls returns the user's call count for the given day, 0 when no
// row exists yet.
func (r *Repository) DailyCalls(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	var calls int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(
		    (SELECT calls FROM usage_ledger WHERE user_id = $1 AND usage_date = $2), 0)`,
		userID, day.Format(time.DateOnly),
	).Scan(&calls)
	if err != nil {
		return 0, fmt.Errorf("fetching daily calls: %w", err)
	}
	return calls, nil
}

// MonthCost returns the accumulated estimated cost across all users from
// monthStart onward. Costs travel as text to keep decimal exactness.
func (r *Repository) MonthCost(ctx context.Context, monthStart time.Time) (decimal.Decimal, error) {
	var costStr string
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(estimated_cost), 0)::text
		 FROM usage_ledger WHERE usage_date >= $1`,
		monthStart.Format(time.DateOnly),
	).Scan(&costStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing monthly cost: %w", err)
	}

	cost, err := decimal.NewFromString(costStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing monthly cost %q: %w", costStr, err)
	}
	return cost, nil
}

// AddUsage increments the (user, day) row by one call plus cost, creating
// it on first use. The single upsert keeps the increment atomic at the
// store level, so concurrent requests never lose a count.
func (r *Repository) AddUsage(ctx context.Context, userID uuid.UUID, day time.Time, cost decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_ledger (user_id, usage_date, calls, estimated_cost)
		 VALUES ($1, $2, 1, $3::numeric)
		 ON CONFLICT (user_id, usage_date) DO UPDATE
		 SET calls = usage_ledger.calls + 1,
		     estimated_cost = usage_ledger.estimated_cost + EXCLUDED.estimated_cost,
		     updated_at = NOW()`,
		userID, day.Format(time.DateOnly), cost.String())
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}
