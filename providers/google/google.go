// Package google implements the moodrank Provider on the Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/moodrank"
	"google.golang.org/genai"
)

// Provider implements the moodrank Provider interface for Google Gemini API.
type Provider struct {
	config Config
	client *genai.Client
}

// Config holds configuration for the Google provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gemini-2.0-flash"
	BaseURL string        // Optional, defaults to Google AI API
	Timeout time.Duration // Optional, defaults to 30s
}

// New creates a new Google provider.
func New(ctx context.Context, config Config) (*Provider, error) {
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Name returns the provider identifier.
func (*Provider) Name() string {
	return "google"
}

// Call sends the user payload with the system instruction and returns the
// concatenated text of the first candidate.
func (p *Provider) Call(ctx context.Context, req *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		},
		Temperature: &temperature,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(req.User)}},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, cfg)
	if err != nil {
		return nil, &moodrank.TransportError{Provider: p.Name(), StatusCode: statusCode(err), Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &moodrank.TransportError{Provider: p.Name(), Err: fmt.Errorf("no candidates in response")}
	}
	candidate := resp.Candidates[0]

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	out := &moodrank.ProviderResponse{
		Content:      sb.String(),
		Model:        resp.ModelVersion,
		FinishReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = moodrank.TokenUsage{
			Prompt:     int(resp.UsageMetadata.PromptTokenCount),
			Completion: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
