// Package bedrock implements the moodrank Provider on the Amazon Bedrock
// Converse API, which takes the same request shape for every model family.
package bedrock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/goccy/go-json"
	"github.com/zoobzio/moodrank"
)

const (
	name           = "bedrock"
	signingService = "bedrock"
)

// Provider implements the moodrank Provider interface for Amazon Bedrock.
// Converse has no JSON mode; InferenceRequest.JSONMode is ignored.
type Provider struct {
	region      string
	credentials aws.Credentials
	model       string
	baseURL     string
	signer      *v4.Signer
	httpClient  *http.Client
}

// Config holds configuration for the Bedrock provider.
type Config struct {
	Region       string        // AWS region (e.g. "us-east-1")
	AccessKey    string        // AWS access key
	SecretKey    string        // AWS secret key
	SessionToken string        // Optional, for temporary credentials
	Model        string        // Model ID (e.g. "anthropic.claude-3-haiku-20240307-v1:0")
	BaseURL      string        // Optional, defaults to the regional runtime endpoint
	Timeout      time.Duration // Optional, defaults to 30s
}

// New creates a new Bedrock provider.
func New(config Config) *Provider {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Model == "" {
		config.Model = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if config.BaseURL == "" {
		config.BaseURL = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", config.Region)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		region: config.Region,
		credentials: aws.Credentials{
			AccessKeyID:     config.AccessKey,
			SecretAccessKey: config.SecretKey,
			SessionToken:    config.SessionToken,
		},
		model:   config.Model,
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		signer:  v4.NewSigner(),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (*Provider) Name() string {
	return name
}

// Call sends the instruction pair through Converse and joins the text blocks
// of the output message.
func (p *Provider) Call(ctx context.Context, req *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	temperature := req.Temperature
	cfg := inferenceConfig{Temperature: &temperature}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = req.MaxTokens
	}
	body, err := json.Marshal(converseRequest{
		System:          []textBlock{{Text: req.System}},
		Messages:        []message{{Role: "user", Content: []textBlock{{Text: req.User}}}},
		InferenceConfig: cfg,
	})
	if err != nil {
		return nil, p.fail(0, fmt.Errorf("failed to marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/model/%s/converse", p.baseURL, url.PathEscape(p.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, p.fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	sum := sha256.Sum256(body)
	if err := p.signer.SignHTTP(ctx, p.credentials, httpReq, hex.EncodeToString(sum[:]), signingService, p.region, time.Now()); err != nil {
		return nil, p.fail(0, fmt.Errorf("failed to sign request: %w", err))
	}

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
		var errorResp bedrockError
		if err := json.Unmarshal(data, &errorResp); err == nil && errorResp.Message != "" {
			return nil, p.fail(resp.StatusCode, errors.New(errorResp.Message))
		}
		return nil, p.fail(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	var out converseResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, p.fail(resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}

	var text strings.Builder
	for _, block := range out.Output.Message.Content {
		text.WriteString(block.Text)
	}
	if text.Len() == 0 {
		return nil, p.fail(resp.StatusCode, errors.New("no text content in response"))
	}

	return &moodrank.ProviderResponse{
		Content: text.String(),
		Usage: moodrank.TokenUsage{
			Prompt:     out.Usage.InputTokens,
			Completion: out.Usage.OutputTokens,
			Total:      out.Usage.TotalTokens,
		},
		Model:        p.model,
		FinishReason: out.StopReason,
	}, nil
}

func (*Provider) fail(status int, err error) error {
	return &moodrank.TransportError{Provider: name, StatusCode: status, Err: err}
}

type converseRequest struct {
	System          []textBlock     `json:"system,omitempty"`
	Messages        []message       `json:"messages"`
	InferenceConfig inferenceConfig `json:"inferenceConfig"`
}

type message struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type textBlock struct {
	Text string `json:"text"`
}

type inferenceConfig struct {
	Temperature *float32 `json:"temperature"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
}

type converseResponse struct {
	Output struct {
		Message message `json:"message"`
	} `json:"output"`
	StopReason string `json:"stopReason"`
	Usage      struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
		TotalTokens  int `json:"totalTokens"`
	} `json:"usage"`
}

type bedrockError struct {
	Message string `json:"message"`
}
