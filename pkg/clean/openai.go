package clean

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient matches the Do method of *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultOpenAIBaseURL is the public OpenAI endpoint; any compatible server works.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds the settings of the OpenAI-compatible back-end.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIGenerator cleans text through an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client  HTTPClient
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAIGenerator creates the generator. A nil client uses a default
// http.Client; per-call deadlines come from the request context.
func NewOpenAIGenerator(config OpenAIConfig, client HTTPClient) (*OpenAIGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenAIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	return &OpenAIGenerator{
		client:  client,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		model:   config.Model,
	}, nil
}

func (g *OpenAIGenerator) Name() string {
	return "openai/" + g.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Generate posts one chat completion. Transport errors, non-2xx answers,
// bodies without a message and truncated answers are all returned as errors.
func (g *OpenAIGenerator) Generate(ctx context.Context, request GenerateRequest) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: request.SystemInstruction},
			{Role: "user", Content: request.Text},
		},
		Temperature: request.Temperature,
		MaxTokens:   request.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+g.apiKey)

	response, err := g.client.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", g.baseURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return "", &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", &MalformedResponseError{Reason: err.Error()}
	}
	if len(decoded.Choices) == 0 {
		return "", &MalformedResponseError{Reason: "no choices"}
	}

	// a length stop means the cleaned text was cut off at the output cap
	if decoded.Choices[0].FinishReason == "length" {
		return "", &MalformedResponseError{Reason: "output truncated at the token limit"}
	}

	return decoded.Choices[0].Message.Content, nil
}
