// Package azure implements the moodrank Provider on Azure OpenAI Service.
// Requests go through the OpenAI SDK with Azure endpoint and key handling.
package azure

import (
	"net/http"
	"time"

	sdkazure "github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/zoobzio/moodrank/providers/openai"
)

// Config holds configuration for the Azure provider.
type Config struct {
	Endpoint   string        // https://{your-resource}.openai.azure.com
	APIKey     string        // Azure API key
	Deployment string        // Deployment name; sent as the model
	APIVersion string        // Optional, defaults to "2024-06-01"
	Timeout    time.Duration // Optional, defaults to 30s
}

// New creates a provider named "azure".
func New(config Config) *openai.Provider {
	if config.APIVersion == "" {
		config.APIVersion = "2024-06-01"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return openai.NewWithOptions("azure", config.Deployment,
		sdkazure.WithEndpoint(config.Endpoint, config.APIVersion),
		sdkazure.WithAPIKey(config.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
}
