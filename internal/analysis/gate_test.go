package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger scripts quota and cost answers and records usage calls.
type fakeLedger struct {
	calls     int
	cost      decimal.Decimal
	readCount int
	recorded  []string
	recordErr error
}

func (f *fakeLedger) DailyCount(context.Context, uuid.UUID) (int, error) {
	f.readCount++
	return f.calls, nil
}

func (f *fakeLedger) MonthlyCost(context.Context) (decimal.Decimal, error) {
	return f.cost, nil
}

func (f *fakeLedger) RecordUsage(_ context.Context, _ uuid.UUID, providerID string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, providerID)
	return nil
}

func newTestGate(ledger Ledger, limit int, ceiling string) *Gate {
	return NewGate(ledger, GateConfig{
		DailyCallLimit: limit,
		MonthlyCeiling: decimal.RequireFromString(ceiling),
		ProbeTimeout:   2 * time.Second,
	})
}

func TestAdmit_ValidationFailures(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name string
		req  Request
	}{
		{"missing user id", Request{Description: "grilled chicken with rice"}},
		{"malformed user id", Request{UserID: "not-a-uuid", Description: "grilled chicken with rice"}},
		{"bad image url", Request{UserID: userID.String(), ImageURL: "ftp://example.com/meal.jpg"}},
		{"no input at all", Request{UserID: userID.String()}},
		{"description too short", Request{UserID: userID.String(), Description: "toast"}},
		{"description only whitespace", Request{UserID: userID.String(), Description: "             "}},
	}

	gate := newTestGate(&fakeLedger{}, 30, "80")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Admit(context.Background(), &tt.req, userID)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestAdmit_ShortDescriptionWithImageIsFine(t *testing.T) {
	srv := newImageServer(t, http.StatusOK, "image/jpeg")
	userID := uuid.New()
	gate := newTestGate(&fakeLedger{}, 30, "80")

	req := &Request{UserID: userID.String(), ImageURL: srv.URL + "/meal.jpg", Description: "lunch"}
	require.NoError(t, gate.Admit(context.Background(), req, userID))
}

func TestAdmit_IdentityMismatchBeforeQuota(t *testing.T) {
	ledger := &fakeLedger{calls: 999}
	gate := newTestGate(ledger, 30, "80")

	req := &Request{UserID: uuid.New().String(), Description: "grilled chicken with rice"}
	err := gate.Admit(context.Background(), req, uuid.New())

	require.ErrorIs(t, err, ErrIdentityMismatch)
	assert.Zero(t, ledger.readCount, "identity mismatch must not touch the ledger")
}

func TestAdmit_QuotaBoundary(t *testing.T) {
	userID := uuid.New()
	req := &Request{UserID: userID.String(), Description: "grilled chicken with rice"}

	// One call short of the limit: admitted.
	gate := newTestGate(&fakeLedger{calls: 4}, 5, "80")
	require.NoError(t, gate.Admit(context.Background(), req, userID))

	// At the limit: rejected.
	gate = newTestGate(&fakeLedger{calls: 5}, 5, "80")
	err := gate.Admit(context.Background(), req, userID)
	require.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestAdmit_CostBoundary(t *testing.T) {
	userID := uuid.New()
	req := &Request{UserID: userID.String(), Description: "grilled chicken with rice"}

	gate := newTestGate(&fakeLedger{cost: decimal.RequireFromString("79.99")}, 30, "80")
	require.NoError(t, gate.Admit(context.Background(), req, userID))

	// Exactly at the ceiling: rejected.
	gate = newTestGate(&fakeLedger{cost: decimal.RequireFromString("80")}, 30, "80")
	err := gate.Admit(context.Background(), req, userID)
	require.ErrorIs(t, err, ErrCostLimitExceeded)
}

func TestAdmit_ImageProbe(t *testing.T) {
	userID := uuid.New()

	t.Run("reachable image admitted", func(t *testing.T) {
		srv := newImageServer(t, http.StatusOK, "image/png")
		gate := newTestGate(&fakeLedger{}, 30, "80")
		req := &Request{UserID: userID.String(), ImageURL: srv.URL + "/meal.png"}
		require.NoError(t, gate.Admit(context.Background(), req, userID))
	})

	t.Run("4xx rejected with status", func(t *testing.T) {
		srv := newImageServer(t, http.StatusNotFound, "text/plain")
		gate := newTestGate(&fakeLedger{}, 30, "80")
		req := &Request{UserID: userID.String(), ImageURL: srv.URL + "/gone.jpg"}

		err := gate.Admit(context.Background(), req, userID)
		var ierr *ImageUnreachableError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, http.StatusNotFound, ierr.StatusCode)
	})

	t.Run("non-image content type rejected", func(t *testing.T) {
		srv := newImageServer(t, http.StatusOK, "text/html")
		gate := newTestGate(&fakeLedger{}, 30, "80")
		req := &Request{UserID: userID.String(), ImageURL: srv.URL + "/page"}

		err := gate.Admit(context.Background(), req, userID)
		var ierr *ImageUnreachableError
		require.ErrorAs(t, err, &ierr)
	})

	t.Run("unreachable host rejected", func(t *testing.T) {
		srv := newImageServer(t, http.StatusOK, "image/jpeg")
		url := srv.URL
		srv.Close()

		gate := newTestGate(&fakeLedger{}, 30, "80")
		req := &Request{UserID: userID.String(), ImageURL: url + "/meal.jpg"}

		err := gate.Admit(context.Background(), req, userID)
		var ierr *ImageUnreachableError
		require.ErrorAs(t, err, &ierr)
	})
}

func newImageServer(t *testing.T, status int, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}
