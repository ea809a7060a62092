package summary

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
	GeminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.4
	defaultMaxTokens   = 1200
)

// Completer answers a single system plus user prompt exchange.
type Completer interface {
	GenerateResponse(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// GeminiProvider talks to Gemini through the OpenAI-compatible API.
type GeminiProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGeminiProvider builds a provider. An empty baseURL uses GeminiBaseURL
// and a negative temperature selects the default; zero is honored.
func NewGeminiProvider(apiKey, model, baseURL string, temperature float32, maxTokens int) *GeminiProvider {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	if temperature < 0 {
		temperature = defaultTemperature
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &GeminiProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// GenerateResponse sends one chat completion request.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	temperature := p.temperature
	if temperature == 0 {
		// go-openai omits a zero temperature from the request body.
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from gemini")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*GeminiProvider)(nil)
