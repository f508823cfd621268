// Package catalog loads candidate lists from YAML or JSON files.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/zoobzio/moodrank"
)

// ErrInvalidCatalog is returned when a file parses but its content is unusable.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is a candidate list with optional default moods.
//
//	moods: [Cozy, Nostalgic]
//	candidates:
//	  - id: stardew
//	    title: Stardew Valley
//	    description: Farm, fish and befriend a small town.
//	    matchedMoods: [Cozy]
type Catalog struct {
	Moods      []string             `json:"moods,omitempty" yaml:"moods"`
	Candidates []moodrank.Candidate `json:"candidates" yaml:"candidates" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a catalog file. The format follows the extension; unknown
// extensions are tried as YAML, then JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Parse decodes a catalog in the given format ("json", "yaml" or "yml").
// Any other format is tried as YAML, then JSON.
func Parse(data []byte, format string) (*Catalog, error) {
	var c Catalog
	switch format {
	case "json":
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			if err := json.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("failed to parse catalog (tried YAML and JSON): %w", err)
			}
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return &c, nil
}
