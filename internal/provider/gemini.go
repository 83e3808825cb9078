package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// GeminiAdapter is the lower-cost primary backend. Gemini does not fetch
// remote URLs itself, so the adapter downloads the image and sends the
// bytes inline.
type GeminiAdapter struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	fetcher *imageFetcher
}

// NewGeminiAdapter creates a Gemini-backed adapter.
func NewGeminiAdapter(apiKey, model string, timeout, fetchTimeout time.Duration, maxImageBytes int64) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiAdapter{
		client:  client,
		model:   model,
		timeout: timeout,
		fetcher: newImageFetcher(fetchTimeout, maxImageBytes),
	}, nil
}

// Name returns the adapter identifier.
func (a *GeminiAdapter) Name() string {
	return "gemini"
}

// Model returns the configured Gemini model.
func (a *GeminiAdapter) Model() string {
	return a.model
}

// AnalyzeImage downloads the image and asks Gemini for a macro estimate.
func (a *GeminiAdapter) AnalyzeImage(ctx context.Context, imageURL, hint string) (*nutrition.MacroEstimate, error) {
	data, mime, err := a.fetcher.fetch(ctx, imageURL)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Err: err}
	}

	prompt := imagePrompt
	if hint != "" {
		prompt = imagePromptWithHint(hint)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mime),
		genai.NewPartFromText(prompt),
	}
	return a.generate(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)})
}

// AnalyzeText asks Gemini for a macro estimate from a meal description.
func (a *GeminiAdapter) AnalyzeText(ctx context.Context, description string) (*nutrition.MacroEstimate, error) {
	return a.generate(ctx, genai.Text(textPrompt(description)))
}

func (a *GeminiAdapter) generate(ctx context.Context, contents []*genai.Content) (*nutrition.MacroEstimate, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Provider: a.Name(), Err: fmt.Errorf("no candidates returned")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	return nutrition.Normalize(content)
}
