package meals

import (
	"time"

	"github.com/google/uuid"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// Meal matches the meals table schema: one row per accepted estimate.
type Meal struct {
	ID          uuid.UUID            `json:"id"`
	UserID      uuid.UUID            `json:"user_id"`
	Description string               `json:"description,omitempty"`
	Calories    int                  `json:"calories"`
	Protein     float64              `json:"protein"`
	Carbs       float64              `json:"carbs"`
	Fat         float64              `json:"fat"`
	Confidence  nutrition.Confidence `json:"confidence"`
	Source      string               `json:"source"`
	Provider    string               `json:"provider"`
	Model       string               `json:"model"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ListParams controls meal history pagination.
type ListParams struct {
	Page     int
	PageSize int
}

// DefaultListParams returns the default pagination.
func DefaultListParams() ListParams {
	return ListParams{Page: 1, PageSize: 20}
}
