// Package anthropic implements the moodrank Provider on the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/zoobzio/moodrank"
)

const name = "anthropic"

// Provider implements the moodrank Provider interface for the Anthropic API.
// The Messages API has no JSON mode; InferenceRequest.JSONMode is ignored
// and the system instruction alone constrains the output.
type Provider struct {
	apiKey     string
	model      string
	version    string
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "claude-3-5-haiku-latest"
	Version string        // API version, defaults to "2023-06-01"
	BaseURL string        // Optional, defaults to "https://api.anthropic.com/v1"
	Timeout time.Duration // Optional, defaults to 30s
}

// New creates a new Anthropic provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-latest"
	}
	if config.Version == "" {
		config.Version = "2023-06-01"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		version: config.Version,
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (*Provider) Name() string {
	return name
}

// Call sends the instruction pair as a system prompt and one user message.
func (p *Provider) Call(ctx context.Context, req *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		// required by the API
		maxTokens = moodrank.DefaultMaxTokens
	}
	temperature := req.Temperature
	body, err := json.Marshal(messagesRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		System:      req.System,
		Messages:    []message{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return nil, p.fail(0, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, p.fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.version)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.fail(0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.fail(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp errorResponse
		if err := json.Unmarshal(data, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, p.fail(resp.StatusCode, fmt.Errorf("%s: %s", errorResp.Error.Type, errorResp.Error.Message))
		}
		return nil, p.fail(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	var messagesResp messagesResponse
	if err := json.Unmarshal(data, &messagesResp); err != nil {
		return nil, p.fail(resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}

	var text strings.Builder
	for _, c := range messagesResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, p.fail(resp.StatusCode, errors.New("no text content in response"))
	}

	in, out := messagesResp.Usage.InputTokens, messagesResp.Usage.OutputTokens
	return &moodrank.ProviderResponse{
		Content: text.String(),
		Usage: moodrank.TokenUsage{
			Prompt:     in,
			Completion: out,
			Total:      in + out,
		},
		Model:        messagesResp.Model,
		FinishReason: messagesResp.StopReason,
	}, nil
}

func (*Provider) fail(status int, err error) error {
	return &moodrank.TransportError{Provider: name, StatusCode: status, Err: err}
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string    `json:"id"`
	Content    []content `json:"content"`
	Model      string    `json:"model"`
	StopReason string    `json:"stop_reason"`
	Usage      usage     `json:"usage"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
