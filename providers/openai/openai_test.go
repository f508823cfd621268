package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zoobzio/moodrank"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "{\"items\":[]}"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestProviderCall(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Bearer token, got %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody))
	}))
	defer server.Close()

	provider := New(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL + "/v1/",
	})

	resp, err := provider.Call(context.Background(), &moodrank.InferenceRequest{
		System:      "system text",
		User:        "user text",
		Temperature: 0,
		JSONMode:    true,
		MaxTokens:   800,
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	t.Run("response", func(t *testing.T) {
		if resp.Content != `{"items":[]}` {
			t.Errorf("Unexpected content %q", resp.Content)
		}
		if resp.Usage.Total != 15 || resp.Usage.Prompt != 10 || resp.Usage.Completion != 5 {
			t.Errorf("Unexpected usage %+v", resp.Usage)
		}
		if resp.Model != "gpt-4o-mini" {
			t.Errorf("Unexpected model %q", resp.Model)
		}
		if resp.FinishReason != "stop" {
			t.Errorf("Unexpected finish reason %q", resp.FinishReason)
		}
	})

	t.Run("request", func(t *testing.T) {
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("Expected model gpt-4o-mini, got %v", body["model"])
		}
		temp, ok := body["temperature"]
		if !ok {
			t.Fatal("temperature 0 must be sent explicitly")
		}
		if temp.(float64) != 0 {
			t.Errorf("Expected temperature 0, got %v", temp)
		}
		format, _ := body["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("Expected json_object response format, got %v", body["response_format"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(msgs))
		}
		first, _ := msgs[0].(map[string]any)
		second, _ := msgs[1].(map[string]any)
		if first["role"] != "system" || second["role"] != "user" {
			t.Errorf("Unexpected roles %v, %v", first["role"], second["role"])
		}
	})
}

func TestProviderErrorHandling(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		wantStatus   int
	}{
		{
			name:         "Rate limit error",
			statusCode:   http.StatusTooManyRequests,
			responseBody: `{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error", "code": "rate_limit"}}`,
			wantStatus:   http.StatusTooManyRequests,
		},
		{
			name:         "API error",
			statusCode:   http.StatusBadRequest,
			responseBody: `{"error": {"message": "Invalid request", "type": "invalid_request_error"}}`,
			wantStatus:   http.StatusBadRequest,
		},
		{
			name:         "Generic error",
			statusCode:   http.StatusInternalServerError,
			responseBody: `not json`,
			wantStatus:   http.StatusInternalServerError,
		},
		{
			name:         "Empty response",
			statusCode:   http.StatusOK,
			responseBody: `{"choices": []}`,
			wantStatus:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			provider := New(Config{
				APIKey:  "test-key",
				BaseURL: server.URL + "/v1/",
			})

			_, err := provider.Call(context.Background(), &moodrank.InferenceRequest{System: "s", User: "u"})
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !errors.Is(err, moodrank.ErrTransport) {
				t.Errorf("Expected ErrTransport, got %v", err)
			}
			var te *moodrank.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("Expected *TransportError, got %T", err)
			}
			if te.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, te.StatusCode)
			}
			if calls != 1 {
				t.Errorf("Expected exactly 1 HTTP call, got %d", calls)
			}
		})
	}
}

func TestProviderName(t *testing.T) {
	if got := New(Config{APIKey: "k"}).Name(); got != "openai" {
		t.Errorf("Expected name openai, got %s", got)
	}
}
