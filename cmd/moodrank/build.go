package main

import (
	"context"
	"fmt"

	"github.com/zoobzio/moodrank"
	"github.com/zoobzio/moodrank/internal/config"
	"github.com/zoobzio/moodrank/providers/anthropic"
	"github.com/zoobzio/moodrank/providers/azure"
	"github.com/zoobzio/moodrank/providers/bedrock"
	"github.com/zoobzio/moodrank/providers/google"
	"github.com/zoobzio/moodrank/providers/openai"
)

func newProvider(ctx context.Context, cfg *config.Config) (moodrank.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case config.ProviderAzure:
		return azure.New(azure.Config{
			Endpoint:   cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Deployment: cfg.Model,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case config.ProviderBedrock:
		return bedrock.New(bedrock.Config{
			Region:       cfg.AWS.Region,
			AccessKey:    cfg.AWS.AccessKeyID,
			SecretKey:    cfg.AWS.SecretAccessKey,
			SessionToken: cfg.AWS.SessionToken,
			Model:        cfg.Model,
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
		}), nil
	case config.ProviderGoogle:
		return google.New(ctx, google.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case config.ProviderMock:
		return moodrank.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

// newOptions maps config onto the options wrapping each provider call.
// The rate limiter is outermost so throttled calls never reach the breaker.
func newOptions(cfg *config.Config) []moodrank.Option {
	var opts []moodrank.Option
	if cfg.Timeout > 0 {
		opts = append(opts, moodrank.WithTimeout(cfg.Timeout))
	}
	if cfg.Breaker.Failures > 0 {
		opts = append(opts, moodrank.WithCircuitBreaker(cfg.Breaker.Failures, cfg.Breaker.Recovery))
	}
	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, moodrank.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	return opts
}

func newRecommender(ctx context.Context, cfg *config.Config) (*moodrank.Recommender, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rec := moodrank.New(provider, newOptions(cfg)...)
	temperature := cfg.Temperature
	return rec.WithSettings(moodrank.Settings{
		Temperature: &temperature,
		MaxTokens:   cfg.MaxTokens,
		JSONRepair:  cfg.JSONRepair,
	}), nil
}
