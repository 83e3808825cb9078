package analysis

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrosnap/macrosnap/internal/events"
	"github.com/macrosnap/macrosnap/internal/nutrition"
	"github.com/macrosnap/macrosnap/internal/provider"
)

func mediumEstimate() *nutrition.MacroEstimate {
	return &nutrition.MacroEstimate{
		Calories: 520, Protein: 38.5, Carbs: 45.0, Fat: 18.5,
		Confidence: nutrition.ConfidenceMedium, Description: "grilled chicken with rice",
	}
}

func lowEstimate() *nutrition.MacroEstimate {
	est := mediumEstimate()
	est.Confidence = nutrition.ConfidenceLow
	return est
}

func highEstimate() *nutrition.MacroEstimate {
	est := mediumEstimate()
	est.Confidence = nutrition.ConfidenceHigh
	return est
}

type fakeHistory struct {
	saved []string // provider ids
	err   error
}

func (f *fakeHistory) SaveMeal(_ context.Context, _ uuid.UUID, _ *nutrition.MacroEstimate, providerID, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, providerID)
	return nil
}

type fakePublisher struct {
	events []events.AnalysisCompleted
}

func (f *fakePublisher) PublishAnalysisCompleted(_ context.Context, ev events.AnalysisCompleted) error {
	f.events = append(f.events, ev)
	return nil
}

type orchFixture struct {
	orch      *Orchestrator
	ledger    *fakeLedger
	history   *fakeHistory
	publisher *fakePublisher
}

func newOrchFixture(t *testing.T, primary, secondary, text provider.Adapter) *orchFixture {
	t.Helper()
	ledger := &fakeLedger{}
	history := &fakeHistory{}
	publisher := &fakePublisher{}
	gate := newTestGate(ledger, 30, "80")
	return &orchFixture{
		orch:      NewOrchestrator(gate, primary, secondary, text, ledger, history, publisher),
		ledger:    ledger,
		history:   history,
		publisher: publisher,
	}
}

func imageRequest(t *testing.T, userID uuid.UUID) *Request {
	t.Helper()
	srv := newImageServer(t, http.StatusOK, "image/jpeg")
	return &Request{UserID: userID.String(), ImageURL: srv.URL + "/meal.jpg"}
}

func TestAnalyze_ConfidentPrimarySkipsSecondary(t *testing.T) {
	for _, est := range []*nutrition.MacroEstimate{mediumEstimate(), highEstimate()} {
		primary := provider.NewMockAdapter("gemini", est, nil)
		secondary := provider.NewMockAdapter("openai", highEstimate(), nil)
		f := newOrchFixture(t, primary, secondary, nil)
		userID := uuid.New()

		res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

		require.NoError(t, err)
		assert.Equal(t, "gemini", res.Provider)
		assert.Equal(t, est.Confidence, res.Estimate.Confidence)
		assert.Equal(t, 1, primary.ImageCalls)
		assert.Zero(t, secondary.ImageCalls, "confident primary must not escalate")
		assert.Equal(t, []string{"gemini"}, f.ledger.recorded)
	}
}

func TestAnalyze_LowConfidenceEscalatesAndUpgrades(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", lowEstimate(), nil)
	secondary := provider.NewMockAdapter("openai", highEstimate(), nil)
	f := newOrchFixture(t, primary, secondary, nil)
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, nutrition.ConfidenceHigh, res.Estimate.Confidence)
	assert.Equal(t, 1, primary.ImageCalls)
	assert.Equal(t, 1, secondary.ImageCalls)
	assert.Equal(t, []string{"openai"}, f.ledger.recorded, "usage billed to the provider that answered")
}

func TestAnalyze_LowConfidenceSecondaryAlsoLowKeepsPrimary(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", lowEstimate(), nil)
	secondary := provider.NewMockAdapter("openai", lowEstimate(), nil)
	f := newOrchFixture(t, primary, secondary, nil)
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, []string{"gemini"}, f.ledger.recorded)
}

func TestAnalyze_LowConfidenceSecondaryFailsKeepsPrimary(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", lowEstimate(), nil)
	secondary := provider.NewMockAdapter("openai", nil, errors.New("boom"))
	f := newOrchFixture(t, primary, secondary, nil)
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, nutrition.ConfidenceLow, res.Estimate.Confidence)
}

func TestAnalyze_LowConfidenceWithoutSecondaryAccepted(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", lowEstimate(), nil)
	f := newOrchFixture(t, primary, nil, nil)
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
}

func TestAnalyze_PrimaryFailureFallsBack(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", nil, errors.New("rate limited"))
	secondary := provider.NewMockAdapter("openai", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, secondary, nil)
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, []string{"openai"}, f.ledger.recorded)
}

func TestAnalyze_BothProvidersFail(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", nil, errors.New("timeout"))
	secondary := provider.NewMockAdapter("openai", nil, errors.New("500"))
	f := newOrchFixture(t, primary, secondary, nil)
	userID := uuid.New()

	_, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.ErrorIs(t, err, ErrUnableToEstimate)
	assert.Empty(t, f.ledger.recorded, "failed analyses are never billed")
	assert.Empty(t, f.history.saved)
}

func TestAnalyze_PrimaryFailureWithoutSecondaryFails(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", nil, errors.New("timeout"))
	f := newOrchFixture(t, primary, nil, nil)
	userID := uuid.New()

	_, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.ErrorIs(t, err, ErrUnableToEstimate)
	assert.Empty(t, f.ledger.recorded)
}

func TestAnalyze_TextModeUsesTextAdapter(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	text := provider.NewMockAdapter("openai", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, nil, text)
	userID := uuid.New()

	req := &Request{UserID: userID.String(), Description: "two scrambled eggs with toast and butter"}
	res, err := f.orch.Analyze(context.Background(), req, userID)

	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, ModeText, res.Mode)
	assert.Equal(t, 1, text.TextCalls)
	assert.Zero(t, primary.TextCalls)
}

func TestAnalyze_TextModeHasNoFallback(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	text := provider.NewMockAdapter("openai", nil, errors.New("timeout"))
	f := newOrchFixture(t, primary, primary, text)
	userID := uuid.New()

	req := &Request{UserID: userID.String(), Description: "two scrambled eggs with toast and butter"}
	_, err := f.orch.Analyze(context.Background(), req, userID)

	require.ErrorIs(t, err, ErrUnableToEstimate)
	assert.Zero(t, primary.TextCalls, "text failures never escalate")
	assert.Zero(t, primary.ImageCalls)
}

func TestAnalyze_TextDefaultsToPrimary(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, nil, nil)
	userID := uuid.New()

	req := &Request{UserID: userID.String(), Description: "two scrambled eggs with toast and butter"}
	res, err := f.orch.Analyze(context.Background(), req, userID)

	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, 1, primary.TextCalls)
}

func TestAnalyze_NotFoodRejected(t *testing.T) {
	notFood := &nutrition.MacroEstimate{Confidence: nutrition.ConfidenceLow, Description: "a wooden table"}
	primary := provider.NewMockAdapter("gemini", notFood, nil)
	f := newOrchFixture(t, primary, nil, nil)
	userID := uuid.New()

	_, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.ErrorIs(t, err, ErrUnableToEstimate)
	assert.Empty(t, f.ledger.recorded, "not-food results are not billed")
	assert.Empty(t, f.history.saved)
	assert.Empty(t, f.publisher.events)
}

func TestAnalyze_HintForwardedToProvider(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, nil, nil)
	userID := uuid.New()

	req := imageRequest(t, userID)
	req.Description = "homemade lasagna"
	_, err := f.orch.Analyze(context.Background(), req, userID)

	require.NoError(t, err)
	assert.Equal(t, "homemade lasagna", primary.LastHint)
}

func TestAnalyze_SuccessSideEffects(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, nil, nil)
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini"}, f.history.saved)
	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, userID.String(), ev.UserID)
	assert.Equal(t, "gemini", ev.Provider)
	assert.Equal(t, ModeImage, ev.Mode)
	assert.Equal(t, res.Estimate.Calories, ev.Calories)
}

func TestAnalyze_LedgerFailureDoesNotFailRequest(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, nil, nil)
	f.ledger.recordErr = errors.New("db down")
	userID := uuid.New()

	res, err := f.orch.Analyze(context.Background(), imageRequest(t, userID), userID)

	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestAnalyze_AdmissionRejectionSkipsProviders(t *testing.T) {
	primary := provider.NewMockAdapter("gemini", mediumEstimate(), nil)
	f := newOrchFixture(t, primary, nil, nil)
	f.ledger.calls = 30
	userID := uuid.New()

	req := &Request{UserID: userID.String(), Description: "two scrambled eggs with toast and butter"}
	_, err := f.orch.Analyze(context.Background(), req, userID)

	require.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Zero(t, primary.ImageCalls)
	assert.Zero(t, primary.TextCalls)
}

func TestDecidePrimary(t *testing.T) {
	tests := []struct {
		name         string
		est          *nutrition.MacroEstimate
		err          error
		hasSecondary bool
		want         action
	}{
		{"high confidence", highEstimate(), nil, true, actionAccept},
		{"medium confidence", mediumEstimate(), nil, true, actionAccept},
		{"low with secondary", lowEstimate(), nil, true, actionEscalate},
		{"low without secondary", lowEstimate(), nil, false, actionAccept},
		{"failure with secondary", nil, errors.New("x"), true, actionEscalate},
		{"failure without secondary", nil, errors.New("x"), false, actionFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decidePrimary(tt.est, tt.err, tt.hasSecondary))
		})
	}
}

func TestResolveEscalation(t *testing.T) {
	t.Run("secondary error keeps primary", func(t *testing.T) {
		est, fromSecondary, err := resolveEscalation(lowEstimate(), nil, errors.New("x"))
		require.NoError(t, err)
		assert.False(t, fromSecondary)
		assert.Equal(t, nutrition.ConfidenceLow, est.Confidence)
	})

	t.Run("secondary error with no primary fails", func(t *testing.T) {
		_, _, err := resolveEscalation(nil, nil, errors.New("x"))
		require.ErrorIs(t, err, ErrUnableToEstimate)
	})

	t.Run("secondary low keeps primary", func(t *testing.T) {
		est, fromSecondary, err := resolveEscalation(lowEstimate(), lowEstimate(), nil)
		require.NoError(t, err)
		assert.False(t, fromSecondary)
		assert.NotNil(t, est)
	})

	t.Run("secondary confident wins", func(t *testing.T) {
		est, fromSecondary, err := resolveEscalation(lowEstimate(), highEstimate(), nil)
		require.NoError(t, err)
		assert.True(t, fromSecondary)
		assert.Equal(t, nutrition.ConfidenceHigh, est.Confidence)
	})

	t.Run("secondary answers after primary failure", func(t *testing.T) {
		est, fromSecondary, err := resolveEscalation(nil, mediumEstimate(), nil)
		require.NoError(t, err)
		assert.True(t, fromSecondary)
		assert.NotNil(t, est)
	})
}
