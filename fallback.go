package moodrank

import (
	"strings"
)

// fallbackBaseScore is the score of the first candidate in a local ranking.
// Each later position scores one less; long lists go negative.
const fallbackBaseScore = 50

// FallbackRank synthesizes a ranking from local data only.
// Output is index-aligned with candidates; it never calls the network and
// never fails.
func FallbackRank(moods []string, candidates []Candidate) []RankedItem {
	items := make([]RankedItem, len(candidates))
	titles := make([]string, len(candidates))
	for i, c := range candidates {
		items[i] = RankedItem{
			ID:     c.ID,
			Score:  float64(fallbackBaseScore - i),
			Reason: fallbackReason(moods, c),
		}
		titles[i] = c.Title
	}
	return finalizeReasons(items, titles)
}

// fallbackReason builds "<opener> <title> is a great pick right now. <hook>."
func fallbackReason(moods []string, c Candidate) string {
	var b strings.Builder

	switch {
	case len(firstMoods(moods)) > 0:
		b.WriteString("Since you're feeling " + joinMoods(firstMoods(moods)) + ",")
	case len(firstMoods(c.MatchedMoods)) > 0:
		b.WriteString("Since you're feeling " + joinMoods(firstMoods(c.MatchedMoods)) + ",")
	default:
		b.WriteString("Given your mood,")
	}

	b.WriteString(" " + c.Title + " is a great pick right now.")

	if snippet := descriptionSnippet(c.Description); snippet != "" {
		b.WriteString(" " + snippet + ".")
	} else {
		b.WriteString(" It matches the vibe you're after.")
	}

	return b.String()
}

// firstMoods returns up to two non-blank moods, in order.
func firstMoods(moods []string) []string {
	out := make([]string, 0, 2)
	for _, m := range moods {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		out = append(out, m)
		if len(out) == 2 {
			break
		}
	}
	return out
}

func joinMoods(moods []string) string {
	return strings.Join(moods, " and ")
}

// descriptionSnippet returns the first sentence fragment of a description,
// cut to SnippetLimit runes.
func descriptionSnippet(description string) string {
	end := strings.IndexAny(description, ".!?")
	if end < 0 {
		end = len(description)
	}
	fragment := strings.TrimSpace(description[:end])
	return strings.TrimSpace(truncateRunes(fragment, SnippetLimit))
}
