package provider

import (
	"context"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// MockAdapter returns scripted results for tests. Calls are counted so
// tests can assert how often a backend was invoked.
type MockAdapter struct {
	AdapterName string
	ModelName   string

	Estimate *nutrition.MacroEstimate
	Err      error

	ImageCalls int
	TextCalls  int
	LastHint   string
}

// NewMockAdapter creates a mock adapter returning the given result.
func NewMockAdapter(name string, est *nutrition.MacroEstimate, err error) *MockAdapter {
	return &MockAdapter{AdapterName: name, ModelName: name + "-model", Estimate: est, Err: err}
}

// Name returns the mock's identifier.
func (a *MockAdapter) Name() string {
	return a.AdapterName
}

// Model returns the mock's model identifier.
func (a *MockAdapter) Model() string {
	return a.ModelName
}

// AnalyzeImage returns the scripted result.
func (a *MockAdapter) AnalyzeImage(_ context.Context, _, hint string) (*nutrition.MacroEstimate, error) {
	a.ImageCalls++
	a.LastHint = hint
	if a.Err != nil {
		return nil, a.Err
	}
	est := *a.Estimate
	return &est, nil
}

// AnalyzeText returns the scripted result.
func (a *MockAdapter) AnalyzeText(_ context.Context, _ string) (*nutrition.MacroEstimate, error) {
	a.TextCalls++
	if a.Err != nil {
		return nil, a.Err
	}
	est := *a.Estimate
	return &est, nil
}
