package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/macrosnap/macrosnap/internal/nutrition"
)

// OpenAIAdapter is the higher-cost secondary backend, also used for
// text-only analysis. The image URL is passed straight through; OpenAI
// fetches it server-side.
type OpenAIAdapter struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIAdapter creates an OpenAI-backed adapter.
func NewOpenAIAdapter(apiKey, model string, timeout time.Duration) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client, model: model, timeout: timeout}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Model returns the configured OpenAI model.
func (a *OpenAIAdapter) Model() string {
	return a.model
}

// AnalyzeImage asks OpenAI for a macro estimate from a meal photo URL.
func (a *OpenAIAdapter) AnalyzeImage(ctx context.Context, imageURL, hint string) (*nutrition.MacroEstimate, error) {
	prompt := imagePrompt
	if hint != "" {
		prompt = imagePromptWithHint(hint)
	}

	userParts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: imageURL,
		}),
	}

	return a.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemInstruction),
		openai.UserMessage(userParts),
	})
}

// AnalyzeText asks OpenAI for a macro estimate from a meal description.
func (a *OpenAIAdapter) AnalyzeText(ctx context.Context, description string) (*nutrition.MacroEstimate, error) {
	return a.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemInstruction),
		openai.UserMessage(textPrompt(description)),
	})
}

func (a *OpenAIAdapter) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*nutrition.MacroEstimate, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(a.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(1024),
	})
	if err != nil {
		return nil, &Error{Provider: a.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: a.Name(), Err: fmt.Errorf("no choices returned")}
	}

	return nutrition.Normalize(resp.Choices[0].Message.Content)
}
