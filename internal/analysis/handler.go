package analysis

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/macrosnap/macrosnap/internal/api"
	"github.com/macrosnap/macrosnap/internal/auth"
	"github.com/macrosnap/macrosnap/internal/nutrition"
	"github.com/macrosnap/macrosnap/internal/provider"
)

// Handler provides the HTTP surface for meal analysis.
type Handler struct {
	orch *Orchestrator
}

// NewHandler creates a new analysis Handler.
func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Response is the outbound success body.
type Response struct {
	Calories        int                  `json:"calories"`
	Protein         float64              `json:"protein"`
	Carbs           float64              `json:"carbs"`
	Fat             float64              `json:"fat"`
	Confidence      nutrition.Confidence `json:"confidence"`
	MealDescription string               `json:"meal_description,omitempty"`
	Source          string               `json:"source"`
	AIModelUsed     string               `json:"ai_model_used,omitempty"`
}

// Analyze handles POST /api/v1/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	authUserID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	res, err := h.orch.Analyze(r.Context(), &req, authUserID)
	if err != nil {
		api.HandleError(w, toAPIError(err))
		return
	}

	api.JSON(w, http.StatusOK, Response{
		Calories:        res.Estimate.Calories,
		Protein:         res.Estimate.Protein,
		Carbs:           res.Estimate.Carbs,
		Fat:             res.Estimate.Fat,
		Confidence:      res.Estimate.Confidence,
		MealDescription: res.Estimate.Description,
		Source:          "ai",
		AIModelUsed:     res.Model,
	})
}

// toAPIError maps the analysis error taxonomy onto HTTP statuses.
func toAPIError(err error) *api.AppError {
	var validationErr *ValidationError
	var unreachableErr *ImageUnreachableError

	switch {
	case errors.As(err, &validationErr):
		return api.NewValidationError(validationErr.Msg)
	case errors.Is(err, ErrIdentityMismatch):
		return api.NewError(http.StatusForbidden, "forbidden", ErrIdentityMismatch.Error())
	case errors.Is(err, ErrRateLimitExceeded):
		return api.NewError(http.StatusTooManyRequests, ErrRateLimitExceeded.Error(), "")
	case errors.Is(err, ErrCostLimitExceeded):
		return api.NewError(http.StatusTooManyRequests, ErrCostLimitExceeded.Error(), "")
	case errors.As(err, &unreachableErr):
		return api.NewError(http.StatusBadRequest, "image unreachable", unreachableErr.Error())
	case errors.Is(err, ErrUnableToEstimate):
		status := http.StatusInternalServerError
		if provider.IsTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		return api.NewError(status, ErrUnableToEstimate.Error(), err.Error())
	default:
		slog.Error("analysis failed", "error", err)
		return api.ErrInternalServer
	}
}
