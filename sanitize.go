package moodrank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// envelope is the object shape the model is instructed to return.
type envelope struct {
	Items []json.RawMessage `json:"items"`
}

// Sanitize turns raw model text into ranked items that are safe to trust.
//
// The text must be a JSON object whose items field is an array, otherwise
// ErrMalformed is returned. Items that reference an id outside candidates
// are dropped. Scores are coerced to numbers and clamped to [MinScore, MaxScore];
// reasons are coerced to trimmed strings and then post-processed so that
// each names its game and no two repeat.
//
// The result may be empty when every referenced id was foreign.
func Sanitize(raw string, candidates []Candidate) ([]RankedItem, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Items == nil {
		return nil, fmt.Errorf("%w: items is not an array", ErrMalformed)
	}

	index := candidateIndex(candidates)
	items := make([]RankedItem, 0, len(env.Items))
	titles := make([]string, 0, len(env.Items))
	for _, rawItem := range env.Items {
		// Numbers stay literal so out-of-range scores coerce instead of failing the item.
		var fields map[string]any
		dec := json.NewDecoder(bytes.NewReader(rawItem))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			continue
		}

		// Hard boundary: only ids the caller supplied survive
		id, ok := fields["id"].(string)
		if !ok {
			continue
		}
		c, known := index[id]
		if !known {
			continue
		}

		items = append(items, RankedItem{
			ID:     id,
			Score:  clampScore(coerceScore(fields["score"])),
			Reason: strings.TrimSpace(coerceReason(fields["reason"])),
		})
		titles = append(titles, c.Title)
	}

	return finalizeReasons(items, titles), nil
}

// finalizeReasons makes every reason unique and ensures it names its game.
//
// Items are processed once, left to right. A reason is only compared with
// reasons of items before it; a repeat gets a title-specific clause, and the
// seen set is then keyed by the modified text. The modified reason is not
// checked again.
//
// Once the title prefix is applied the final text is compared too, so two
// games sharing a title cannot end up with the same reason.
// titles[i] is the title of the game items[i] refers to.
func finalizeReasons(items []RankedItem, titles []string) []RankedItem {
	seen := make(map[string]struct{}, 2*len(items))
	for i := range items {
		title := titles[i]
		clause := ` (especially if "` + title + `" appeals today)`
		reason := items[i].Reason
		if _, dup := seen[strings.ToLower(reason)]; dup {
			reason += clause
		}
		key := strings.ToLower(reason)
		seen[key] = struct{}{}

		if !strings.Contains(strings.ToLower(reason), strings.ToLower(title)) {
			reason = title + ": " + reason
		}
		reason = strings.TrimSpace(reason)

		if final := strings.ToLower(reason); final != key {
			for {
				if _, dup := seen[final]; !dup {
					break
				}
				reason += clause
				final = strings.ToLower(reason)
			}
			seen[final] = struct{}{}
		}
		items[i].Reason = reason
	}
	return items
}

// coerceScore converts a decoded JSON value to a number.
// Anything that is not a finite number becomes 0.
func coerceScore(v any) float64 {
	var score float64
	switch val := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return 0
		}
		score = f
	case float64:
		score = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		score = f
	case bool:
		if val {
			score = 1
		}
	default:
		return 0
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

func clampScore(score float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, score))
}

// coerceReason converts a decoded JSON value to text.
func coerceReason(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return string(val)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
