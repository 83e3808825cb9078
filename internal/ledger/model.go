package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record matches the usage_ledger table schema: one row per
// (user, calendar day). Calls only ever grows within a day; a new day
// starts a new row. Rows are never deleted here.
type Record struct {
	UserID        uuid.UUID       `json:"user_id"`
	UsageDate     time.Time       `json:"usage_date"`
	Calls         int             `json:"calls"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Status is the API response showing current usage against limits.
type Status struct {
	CallsToday     int             `json:"calls_today"`
	DailyCallLimit int             `json:"daily_call_limit"`
	MonthCost      decimal.Decimal `json:"month_cost"`
	MonthlyCeiling decimal.Decimal `json:"monthly_ceiling"`
}
