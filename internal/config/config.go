// Package config defines the moodrank host configuration and how it is loaded.
package config

import (
	"fmt"
	"time"
)

// Provider kinds accepted in Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderMock      = "mock"
)

// Config contains process configuration for the CLI and HTTP hosts.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects json or console output.
	LogFormat string `koanf:"log_format"`

	// Provider selects the inference backend: openai, azure, google,
	// anthropic, bedrock or mock.
	Provider string `koanf:"provider"`

	// Model overrides the provider's default model.
	Model string `koanf:"model"`

	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"` // Azure resource endpoint for azure

	// APIVersion is the Azure OpenAI API version.
	APIVersion string `koanf:"api_version"`

	AWS AWSConfig `koanf:"aws"`

	// Timeout bounds each provider call.
	Timeout time.Duration `koanf:"timeout"`

	Temperature float32 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	JSONRepair  bool    `koanf:"json_repair"`

	Breaker   BreakerConfig   `koanf:"breaker"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	HTTP      HTTPConfig      `koanf:"http"`
}

// AWSConfig holds Bedrock credentials.
type AWSConfig struct {
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	SessionToken    string `koanf:"session_token"`
}

// BreakerConfig configures the circuit breaker around provider calls.
// Failures of 0 disables it.
type BreakerConfig struct {
	Failures int           `koanf:"failures"`
	Recovery time.Duration `koanf:"recovery"`
}

// RateLimitConfig throttles outbound provider calls. RPS of 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// HTTPConfig bounds the inbound HTTP surface.
type HTTPConfig struct {
	MaxCandidates     int `koanf:"max_candidates"`
	RequestsPerMinute int `koanf:"requests_per_minute"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:        ":8080",
		LogLevel:    "info",
		LogFormat:   "json",
		Provider:    ProviderMock,
		Timeout:     30 * time.Second,
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Temperature: 0.2,
		MaxTokens:   800,
		Breaker: BreakerConfig{
			Failures: 5,
			Recovery: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RPS:   0,
			Burst: 1,
		},
		HTTP: HTTPConfig{
			MaxCandidates:     100,
			RequestsPerMinute: 60,
		},
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !knownProvider(c.Provider):
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	case c.Provider != ProviderMock && c.Provider != ProviderBedrock && c.APIKey == "":
		return fmt.Errorf("%w: api_key is required for provider %s", ErrInvalidConfig, c.Provider)
	case c.Provider == ProviderAzure && (c.BaseURL == "" || c.Model == ""):
		return fmt.Errorf("%w: azure needs base_url (endpoint) and model (deployment)", ErrInvalidConfig)
	case c.Provider == ProviderBedrock && (c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == ""):
		return fmt.Errorf("%w: bedrock needs aws.access_key_id and aws.secret_access_key", ErrInvalidConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidConfig)
	case c.MaxTokens < 0:
		return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidConfig)
	case c.Breaker.Failures < 0:
		return fmt.Errorf("%w: breaker.failures must not be negative", ErrInvalidConfig)
	case c.Breaker.Failures > 0 && c.Breaker.Recovery <= 0:
		return fmt.Errorf("%w: breaker.recovery must be positive", ErrInvalidConfig)
	case c.RateLimit.RPS < 0:
		return fmt.Errorf("%w: rate_limit.rps must not be negative", ErrInvalidConfig)
	case c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1:
		return fmt.Errorf("%w: rate_limit.burst must be at least 1", ErrInvalidConfig)
	case c.HTTP.MaxCandidates < 1:
		return fmt.Errorf("%w: http.max_candidates must be at least 1", ErrInvalidConfig)
	case c.HTTP.RequestsPerMinute < 0:
		return fmt.Errorf("%w: http.requests_per_minute must not be negative", ErrInvalidConfig)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

func knownProvider(p string) bool {
	switch p {
	case ProviderOpenAI, ProviderAzure, ProviderGoogle, ProviderAnthropic, ProviderBedrock, ProviderMock:
		return true
	}
	return false
}
