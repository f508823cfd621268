// Package openai implements the moodrank Provider on the OpenAI chat
// completions API. Any OpenAI-compatible endpoint works through BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zoobzio/moodrank"
)

// Provider implements the moodrank Provider interface for OpenAI API.
type Provider struct {
	client *openai.Client
	model  string
	name   string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gpt-4o-mini"
	BaseURL string        // Optional, defaults to the SDK's OpenAI endpoint
	Timeout time.Duration // Optional, defaults to 30s
}

// New creates a new OpenAI provider.
// SDK retries are disabled; the recommender owns the retry budget.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return NewWithOptions("openai", config.Model, opts...)
}

// NewWithOptions creates a provider for an OpenAI-compatible service that
// needs its own endpoint or authentication options.
func NewWithOptions(name, model string, opts ...option.RequestOption) *Provider {
	client := openai.NewClient(append(opts, option.WithMaxRetries(0))...)
	return &Provider{
		client: &client,
		model:  model,
		name:   name,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the system and user messages and returns the first choice.
func (p *Provider) Call(ctx context.Context, req *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &moodrank.TransportError{Provider: p.name, StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, &moodrank.TransportError{Provider: p.name, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &moodrank.TransportError{Provider: p.name, Err: fmt.Errorf("no response choices returned")}
	}
	choice := resp.Choices[0]

	return &moodrank.ProviderResponse{
		Content: choice.Message.Content,
		Usage: moodrank.TokenUsage{
			Prompt:     int(resp.Usage.PromptTokens),
			Completion: int(resp.Usage.CompletionTokens),
			Total:      int(resp.Usage.TotalTokens),
		},
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
	}, nil
}
