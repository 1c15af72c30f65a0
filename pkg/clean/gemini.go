package clean

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds the settings of the Gemini back-end.
type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL and HTTPClient override the API endpoint, mostly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiGenerator cleans text with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini generator.
func NewGeminiGenerator(ctx context.Context, config GeminiConfig) (*GeminiGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: config.Model}, nil
}

// Name identifies the back-end and model in logs.
func (g *GeminiGenerator) Name() string {
	return "gemini/" + g.model
}

// Generate sends one cleaning request.
func (g *GeminiGenerator) Generate(ctx context.Context, request GenerateRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(request.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(request.Temperature),
		MaxOutputTokens:   request.MaxOutputTokens,
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(request.Text), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if response == nil || len(response.Candidates) == 0 {
		return "", &MalformedResponseError{Reason: "no candidates"}
	}

	if response.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return "", &MalformedResponseError{Reason: "output truncated at the token limit"}
	}

	return response.Text(), nil
}
