// Package moodrank re-ranks a short list of game candidates against a set of
// moods using an LLM, and always returns a well-formed ranked list.
//
// The model is treated as an untrusted text generator. Its output is parsed,
// sanitized against the original candidate set and, when it cannot be used,
// repaired through an ordered chain of recovery stages:
//
//   - DirectParse: the primary response parsed as-is
//   - RegexExtract: the first-to-last brace span of the primary response
//   - JSONRepair: syntactic repair of truncated output (opt-in)
//   - StrictRetry: one extra call at temperature 0 with a stricter instruction
//   - LocalFallback: a deterministic ranking synthesized from local data
//
// Every path ends in a ranked list. Callers never see a parse error.
//
// Basic usage:
//
//	provider := openai.New(openai.Config{APIKey: key, Model: "gpt-4o-mini"})
//	rec := moodrank.New(provider, moodrank.WithTimeout(20*time.Second))
//	resp := rec.Rerank(ctx, []string{"Cozy", "Nostalgic"}, candidates)
//	for _, item := range resp.Items {
//		fmt.Println(item.ID, item.Score, item.Reason)
//	}
package moodrank

import (
	"context"
	"errors"
	"fmt"
)

// Provider defines the interface for inference endpoints.
// Providers send one system/user instruction pair and return the raw text.
type Provider interface {
	// Call sends the request to the model and returns its raw output.
	// Network, timeout and non-2xx failures are returned as errors wrapping ErrTransport.
	Call(ctx context.Context, req *InferenceRequest) (*ProviderResponse, error)

	// Name returns the provider identifier (e.g., "openai", "google")
	Name() string
}

// InferenceRequest is what a Provider receives for a single call.
type InferenceRequest struct {
	System      string  // System instruction
	User        string  // User payload
	Temperature float32 // Sent as-is; 0 means 0, not "unset"
	JSONMode    bool    // Constrain output to a JSON object
	MaxTokens   int     // Upper bound on output tokens
	Strict      bool    // True for the repair retry
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int // Tokens used by the prompt/messages
	Completion int // Tokens used by the completion/response
	Total      int // Total tokens used
}

// ProviderResponse contains the response from an inference provider.
type ProviderResponse struct {
	Content      string     // The raw text response content
	Usage        TokenUsage // Token usage statistics
	Model        string     // Model that served the request, if reported
	FinishReason string     // Why generation stopped, if reported
}

var (
	// ErrTransport marks a failure to obtain any text from the provider.
	ErrTransport = errors.New("inference transport failure")

	// ErrMalformed marks model output that could not be turned into ranked items.
	ErrMalformed = errors.New("malformed inference response")
)

// TransportError is returned by providers when no usable text was obtained.
// It matches ErrTransport with errors.Is.
type TransportError struct {
	Provider   string // Provider name
	StatusCode int    // HTTP status, 0 when the request never completed
	Err        error  // Underlying cause
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (*TransportError) Is(target error) bool { return target == ErrTransport }
