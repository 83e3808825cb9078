package meals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// Repository handles meals PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new meals Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveMeal persists one accepted estimate. Implements
// analysis.HistoryStore.
func (r *Repository) SaveMeal(ctx context.Context, userID uuid.UUID, est *nutrition.MacroEstimate, providerID, model, mode string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO meals (id, user_id, description, calories, protein, carbs, fat,
		                    confidence, source, provider, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.New(), userID, est.Description, est.Calories, est.Protein, est.Carbs, est.Fat,
		string(est.Confidence), mode, providerID, model, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting meal: %w", err)
	}
	return nil
}

// ListByUser returns the user's meal history, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]*Meal, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM meals WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting meals: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, description, calories, protein, carbs, fat,
		        confidence, source, provider, model, created_at
		 FROM meals WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying meals: %w", err)
	}
	defer rows.Close()

	var list []*Meal
	for rows.Next() {
		m := &Meal{}
		var confidence string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Description, &m.Calories, &m.Protein,
			&m.Carbs, &m.Fat, &confidence, &m.Source, &m.Provider, &m.Model, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning meal: %w", err)
		}
		m.Confidence = nutrition.Confidence(confidence)
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating meals: %w", err)
	}

	return list, total, nil
}
