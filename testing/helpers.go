// Package testing provides utilities for testing moodrank recommenders.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/moodrank"
)

// Provider name constants for test helpers.
const (
	SequencedProviderName = "sequenced-mock"
	FailingProviderName   = "failing-mock"
)

// ResponseBuilder provides a fluent interface for constructing mock model output.
type ResponseBuilder struct {
	items []any
	extra map[string]any
}

// NewResponseBuilder creates a new ResponseBuilder.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{
		items: make([]any, 0),
		extra: make(map[string]any),
	}
}

// WithItem appends a well-formed ranked item.
func (b *ResponseBuilder) WithItem(id string, score float64, reason string) *ResponseBuilder {
	b.items = append(b.items, map[string]any{
		"id":     id,
		"score":  score,
		"reason": reason,
	})
	return b
}

// WithRawItem appends an arbitrary value to the items array,
// e.g. a string score or a non-object element.
func (b *ResponseBuilder) WithRawItem(item any) *ResponseBuilder {
	b.items = append(b.items, item)
	return b
}

// WithField sets an arbitrary top-level field.
func (b *ResponseBuilder) WithField(key string, value any) *ResponseBuilder {
	b.extra[key] = value
	return b
}

// Build returns the JSON string representation of the response.
func (b *ResponseBuilder) Build() string {
	return string(b.BuildBytes())
}

// BuildBytes returns the JSON bytes of the response.
func (b *ResponseBuilder) BuildBytes() []byte {
	data := make(map[string]any, len(b.extra)+1)
	for k, v := range b.extra {
		data[k] = v
	}
	if _, set := data["items"]; !set {
		data["items"] = b.items
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []byte("{}")
	}
	return jsonBytes
}

// BuildWrapped returns the response surrounded by prose, the way chatty
// models tend to answer.
func (b *ResponseBuilder) BuildWrapped(before, after string) string {
	return before + b.Build() + after
}

// BuildTruncated returns the response cut off after n bytes.
func (b *ResponseBuilder) BuildTruncated(n int) string {
	s := b.Build()
	if n >= len(s) {
		return s
	}
	return s[:n]
}

// SequencedProvider returns responses in sequence.
// After all responses are exhausted, it returns the last response repeatedly.
type SequencedProvider struct {
	name      string
	responses []string
	index     atomic.Int64
}

// NewSequencedProvider creates a provider that returns responses in order.
func NewSequencedProvider(responses ...string) *SequencedProvider {
	if len(responses) == 0 {
		responses = []string{`{"error": "no responses configured"}`}
	}
	return &SequencedProvider{
		name:      SequencedProviderName,
		responses: responses,
	}
}

// WithName overrides the provider name reported to hooks.
func (p *SequencedProvider) WithName(name string) *SequencedProvider {
	p.name = name
	return p
}

// Call returns the next response in sequence.
func (p *SequencedProvider) Call(_ context.Context, _ *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	idx := int(p.index.Add(1) - 1)
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}

	return &moodrank.ProviderResponse{
		Content: p.responses[idx],
		Usage: moodrank.TokenUsage{
			Prompt:     100,
			Completion: 50,
			Total:      150,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *SequencedProvider) Name() string {
	return p.name
}

// CallCount returns the number of calls made.
func (p *SequencedProvider) CallCount() int {
	return int(p.index.Load())
}

// Reset resets the call counter.
func (p *SequencedProvider) Reset() {
	p.index.Store(0)
}

// FailingProvider fails a specified number of times before succeeding.
type FailingProvider struct {
	failCount    int
	currentCount atomic.Int64
	successResp  string
	statusCode   int
	failError    string
}

// NewFailingProvider creates a provider that fails failCount times then succeeds.
func NewFailingProvider(failCount int) *FailingProvider {
	return &FailingProvider{
		failCount:   failCount,
		successResp: `{"items": []}`,
		failError:   "simulated provider failure",
	}
}

// WithSuccessResponse sets the response returned after failures are exhausted.
func (p *FailingProvider) WithSuccessResponse(response string) *FailingProvider {
	p.successResp = response
	return p
}

// WithFailError sets the error message for failures.
func (p *FailingProvider) WithFailError(errMsg string) *FailingProvider {
	p.failError = errMsg
	return p
}

// WithStatusCode sets the HTTP status reported by failures.
func (p *FailingProvider) WithStatusCode(code int) *FailingProvider {
	p.statusCode = code
	return p
}

// Call fails until failCount is reached, then succeeds.
func (p *FailingProvider) Call(_ context.Context, _ *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	count := p.currentCount.Add(1)
	if int(count) <= p.failCount {
		return nil, &moodrank.TransportError{
			Provider:   FailingProviderName,
			StatusCode: p.statusCode,
			Err:        &failure{msg: p.failError, attempt: int(count), of: p.failCount},
		}
	}

	return &moodrank.ProviderResponse{
		Content: p.successResp,
		Usage: moodrank.TokenUsage{
			Prompt:     100,
			Completion: 50,
			Total:      150,
		},
	}, nil
}

// Name returns the provider identifier.
func (*FailingProvider) Name() string {
	return FailingProviderName
}

// CallCount returns the number of calls made.
func (p *FailingProvider) CallCount() int {
	return int(p.currentCount.Load())
}

// Reset resets the call counter.
func (p *FailingProvider) Reset() {
	p.currentCount.Store(0)
}

type failure struct {
	msg         string
	attempt, of int
}

func (f *failure) Error() string {
	return fmt.Sprintf("%s (attempt %d/%d)", f.msg, f.attempt, f.of)
}

// CallRecorder wraps a provider and records all calls made to it.
type CallRecorder struct {
	provider moodrank.Provider
	calls    []moodrank.InferenceRequest
	mu       sync.Mutex
}

// NewCallRecorder wraps a provider with call recording.
func NewCallRecorder(provider moodrank.Provider) *CallRecorder {
	return &CallRecorder{
		provider: provider,
		calls:    make([]moodrank.InferenceRequest, 0),
	}
}

// Call delegates to the wrapped provider and records the call.
func (r *CallRecorder) Call(ctx context.Context, req *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	r.mu.Lock()
	r.calls = append(r.calls, *req)
	r.mu.Unlock()

	return r.provider.Call(ctx, req)
}

// Name returns the wrapped provider's name.
func (r *CallRecorder) Name() string {
	return r.provider.Name()
}

// Calls returns a copy of all recorded calls.
func (r *CallRecorder) Calls() []moodrank.InferenceRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]moodrank.InferenceRequest, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallCount returns the number of calls recorded.
func (r *CallRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// LastCall returns the most recent call, or nil if no calls made.
func (r *CallRecorder) LastCall() *moodrank.InferenceRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return nil
	}
	call := r.calls[len(r.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make([]moodrank.InferenceRequest, 0)
}

// LatencyProvider wraps a provider and adds artificial latency.
type LatencyProvider struct {
	provider moodrank.Provider
	delay    time.Duration
}

// NewLatencyProvider wraps a provider with artificial delay.
// The delay is applied before each provider call and respects context cancellation.
func NewLatencyProvider(provider moodrank.Provider, delay time.Duration) *LatencyProvider {
	return &LatencyProvider{
		provider: provider,
		delay:    delay,
	}
}

// Call adds latency then delegates to the wrapped provider.
func (p *LatencyProvider) Call(ctx context.Context, req *moodrank.InferenceRequest) (*moodrank.ProviderResponse, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, &moodrank.TransportError{Provider: p.provider.Name(), Err: ctx.Err()}
		}
	}
	return p.provider.Call(ctx, req)
}

// Name returns the wrapped provider's name.
func (p *LatencyProvider) Name() string {
	return p.provider.Name()
}

// UsageAccumulator tracks total token usage across multiple calls.
type UsageAccumulator struct {
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	totalTokens      atomic.Int64
	callCount        atomic.Int64
}

// NewUsageAccumulator creates a new usage accumulator.
func NewUsageAccumulator() *UsageAccumulator {
	return &UsageAccumulator{}
}

// Listen accumulates usage from completed calls to the named provider
// until stop is called. An empty name accepts every provider.
func (a *UsageAccumulator) Listen(provider string) (stop func()) {
	listener := capitan.Hook(moodrank.ProviderCallCompleted, func(_ context.Context, e *capitan.Event) {
		if name, _ := moodrank.ProviderKey.From(e); provider == "" || name == provider {
			a.AddEvent(e)
		}
	})
	return func() { listener.Close() }
}

// AddEvent accumulates usage from a provider.call.completed event.
func (a *UsageAccumulator) AddEvent(e *capitan.Event) {
	prompt, _ := moodrank.PromptTokensKey.From(e)
	completion, _ := moodrank.CompletionTokensKey.From(e)
	total, _ := moodrank.TotalTokensKey.From(e)
	a.AddUsage(&moodrank.TokenUsage{Prompt: prompt, Completion: completion, Total: total})
}

// AddUsage accumulates usage directly.
func (a *UsageAccumulator) AddUsage(usage *moodrank.TokenUsage) {
	if usage != nil {
		a.promptTokens.Add(int64(usage.Prompt))
		a.completionTokens.Add(int64(usage.Completion))
		a.totalTokens.Add(int64(usage.Total))
		a.callCount.Add(1)
	}
}

// PromptTokens returns total prompt tokens.
func (a *UsageAccumulator) PromptTokens() int {
	return int(a.promptTokens.Load())
}

// CompletionTokens returns total completion tokens.
func (a *UsageAccumulator) CompletionTokens() int {
	return int(a.completionTokens.Load())
}

// TotalTokens returns total tokens.
func (a *UsageAccumulator) TotalTokens() int {
	return int(a.totalTokens.Load())
}

// CallCount returns number of calls accumulated.
func (a *UsageAccumulator) CallCount() int {
	return int(a.callCount.Load())
}

// Reset clears all accumulated values.
func (a *UsageAccumulator) Reset() {
	a.promptTokens.Store(0)
	a.completionTokens.Store(0)
	a.totalTokens.Store(0)
	a.callCount.Store(0)
}
