package ledger

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/macrosnap/macrosnap/internal/api"
	"github.com/macrosnap/macrosnap/internal/auth"
)

// Handler provides the HTTP surface for usage status.
type Handler struct {
	svc            *Service
	dailyCallLimit int
	monthlyCeiling decimal.Decimal
}

// NewHandler creates a new ledger Handler.
func NewHandler(svc *Service, dailyCallLimit int, monthlyCeiling decimal.Decimal) *Handler {
	return &Handler{svc: svc, dailyCallLimit: dailyCallLimit, monthlyCeiling: monthlyCeiling}
}

// GetUsage returns the authenticated user's usage against the limits.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	calls, err := h.svc.DailyCount(r.Context(), userID)
	if err != nil {
		slog.Error("fetching daily count", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	monthCost, err := h.svc.MonthlyCost(r.Context())
	if err != nil {
		slog.Error("fetching monthly cost", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, Status{
		CallsToday:     calls,
		DailyCallLimit: h.dailyCallLimit,
		MonthCost:      monthCost,
		MonthlyCeiling: h.monthlyCeiling,
	})
}
