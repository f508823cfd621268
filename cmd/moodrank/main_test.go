package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zoobzio/moodrank"
	"github.com/zoobzio/moodrank/internal/config"
	"github.com/zoobzio/moodrank/providers/anthropic"
	"github.com/zoobzio/moodrank/providers/bedrock"
	"github.com/zoobzio/moodrank/providers/google"
	"github.com/zoobzio/moodrank/providers/openai"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		provider string
		check    func(moodrank.Provider) bool
	}{
		{"mock", config.ProviderMock, func(p moodrank.Provider) bool { _, ok := p.(*moodrank.MockProvider); return ok }},
		{"openai", config.ProviderOpenAI, func(p moodrank.Provider) bool { _, ok := p.(*openai.Provider); return ok }},
		{"google", config.ProviderGoogle, func(p moodrank.Provider) bool { _, ok := p.(*google.Provider); return ok }},
		{"azure", config.ProviderAzure, func(p moodrank.Provider) bool { return p.Name() == "azure" }},
		{"anthropic", config.ProviderAnthropic, func(p moodrank.Provider) bool { _, ok := p.(*anthropic.Provider); return ok }},
		{"bedrock", config.ProviderBedrock, func(p moodrank.Provider) bool { _, ok := p.(*bedrock.Provider); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.Provider = tt.provider
			cfg.APIKey = "test-key"
			p, err := newProvider(ctx, cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(p) {
				t.Errorf("unexpected provider type %T", p)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		cfg := config.New()
		cfg.Provider = "llama"
		if _, err := newProvider(ctx, cfg); !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestNewOptions(t *testing.T) {
	cfg := config.New()
	if got := len(newOptions(cfg)); got != 2 {
		t.Errorf("defaults: expected timeout and breaker, got %d options", got)
	}

	cfg.RateLimit.RPS = 5
	if got := len(newOptions(cfg)); got != 3 {
		t.Errorf("expected 3 options with rate limit, got %d", got)
	}

	cfg.Timeout = 0
	cfg.Breaker.Failures = 0
	cfg.RateLimit.RPS = 0
	if got := len(newOptions(cfg)); got != 0 {
		t.Errorf("expected no options, got %d", got)
	}
}

func TestNewRecommender(t *testing.T) {
	cfg := config.New()
	cfg.Temperature = 0.5
	cfg.MaxTokens = 300
	cfg.JSONRepair = true

	rec, err := newRecommender(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := rec.Settings()
	if *s.Temperature != 0.5 || s.MaxTokens != 300 || !s.JSONRepair {
		t.Errorf("settings not applied: %+v", s)
	}
}

func TestRankCommand(t *testing.T) {
	t.Setenv(config.PathEnvVar, "")
	t.Setenv("MOODRANK_PROVIDER", "mock")
	t.Setenv("MOODRANK_LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "games.yaml")
	data := "moods: [Cozy]\ncandidates:\n  - id: a\n    title: Stardew Valley\n  - id: b\n    title: Celeste\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"rank", "-f", path, "-m", "Nostalgic"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var resp moodrank.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != "a" {
		t.Errorf("unexpected items %+v", resp.Items)
	}
}

func TestRankCommand_MissingFile(t *testing.T) {
	t.Setenv(config.PathEnvVar, "")
	t.Setenv("MOODRANK_LOG_LEVEL", "error")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"rank", "-f", filepath.Join(t.TempDir(), "absent.yaml")})
	if err := root.Execute(); err == nil {
		t.Error("expected error for missing catalog")
	}
}

func TestServe_Shutdown(t *testing.T) {
	t.Setenv(config.PathEnvVar, "")
	t.Setenv("MOODRANK_LOG_LEVEL", "error")

	a := &app{}
	if err := a.init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	a.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := a.serve(ctx); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
