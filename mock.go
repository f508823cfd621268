package moodrank

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockProvider simulates a well-behaved model for testing.
// It ranks the candidates from the user payload in the order given.
type MockProvider struct {
	mu        sync.Mutex
	name      string
	available bool
	calls     int
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:      "mock",
		available: true,
	}
}

// NewMockProviderWithName creates a new mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	return &MockProvider{
		name:      name,
		available: true,
	}
}

// Call returns a valid ranking for the candidates in req.User.
func (m *MockProvider) Call(_ context.Context, req *InferenceRequest) (*ProviderResponse, error) {
	m.mu.Lock()
	m.calls++
	available := m.available
	m.mu.Unlock()

	if !available {
		return nil, &TransportError{Provider: m.name, Err: fmt.Errorf("provider %s is unavailable", m.name)}
	}

	content, err := mockRanking(req.User)
	if err != nil {
		return nil, &TransportError{Provider: m.name, Err: err}
	}
	return &ProviderResponse{
		Content:      content,
		Usage:        TokenUsage{Prompt: len(req.System) / 4, Completion: len(content) / 4, Total: (len(req.System) + len(content)) / 4},
		Model:        "mock-model",
		FinishReason: "stop",
	}, nil
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// SetAvailable sets the availability status (for testing failures).
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Calls returns how many times Call was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockRanking reads the user payload and scores candidates from 90 down.
func mockRanking(user string) (string, error) {
	var payload struct {
		Moods      []string `json:"selected_moods"`
		Candidates []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(user), &payload); err != nil {
		return "", fmt.Errorf("decoding user payload: %w", err)
	}

	resp := Response{Items: make([]RankedItem, 0, len(payload.Candidates))}
	for i, c := range payload.Candidates {
		resp.Items = append(resp.Items, RankedItem{
			ID:     c.ID,
			Score:  float64(90 - i),
			Reason: fmt.Sprintf("%s fits the mood you picked.", c.Title),
		})
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewMockProviderWithResponse creates a mock that always returns a specific response.
func NewMockProviderWithResponse(response string) Provider {
	return &mockProviderFixed{response: response}
}

// NewMockProviderWithCallback creates a mock that calls a function to generate responses.
func NewMockProviderWithCallback(callback func(req *InferenceRequest) (string, error)) Provider {
	return &mockProviderCallback{callback: callback}
}

// mockProviderFixed always returns a fixed response.
type mockProviderFixed struct {
	response string
}

func (m *mockProviderFixed) Call(_ context.Context, _ *InferenceRequest) (*ProviderResponse, error) {
	return &ProviderResponse{Content: m.response}, nil
}

func (*mockProviderFixed) Name() string {
	return "mock-fixed"
}

// mockProviderCallback uses a callback to generate responses.
type mockProviderCallback struct {
	callback func(*InferenceRequest) (string, error)
}

func (m *mockProviderCallback) Call(_ context.Context, req *InferenceRequest) (*ProviderResponse, error) {
	content, err := m.callback(req)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{Content: content}, nil
}

func (*mockProviderCallback) Name() string {
	return "mock-callback"
}
