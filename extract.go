package moodrank

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// objectPattern is greedy: it spans from the first { to the last }.
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

var errNoObject = errors.New("no JSON object in response")

// extractObject returns the first brace-delimited span of raw.
// Prose around the object ("Sure! {...} Enjoy!") is discarded.
func extractObject(raw string) (string, error) {
	match := objectPattern.FindString(raw)
	if match == "" {
		return "", errNoObject
	}
	return match, nil
}

// repairObject runs syntactic JSON repair over raw, starting at the first {.
// It targets output cut off by the token limit, which has no closing brace
// for extractObject to find.
func repairObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", errNoObject
	}
	fixed, err := jsonrepair.JSONRepair(raw[start:])
	if err != nil {
		return "", fmt.Errorf("json repair: %w", err)
	}
	return fixed, nil
}
