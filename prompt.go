package moodrank

import (
	"encoding/json"
	"strings"
)

// StrictDirective is appended to the system instruction for the repair retry.
const StrictDirective = "Return ONLY a single JSON object, no prose."

// Prompt is the structured instruction pair sent to the model.
// It renders into a system instruction and a JSON user payload.
type Prompt struct {
	Task        string      // What the model should do
	Moods       []string    // Selected moods, in caller order
	Candidates  []Candidate // Candidates to re-rank
	Schema      string      // JSON schema for the response
	Constraints []string    // Rules the response must follow
}

// BuildPrompt constructs the prompt for a set of moods and candidates.
// It performs no I/O and tolerates empty input.
func BuildPrompt(moods []string, candidates []Candidate) *Prompt {
	return &Prompt{
		Task: "Re-rank the given games for a player based on how well each fits their selected moods. " +
			"Only re-order and re-score the candidates you are given. Never invent new games and never omit one.",
		Moods:      moods,
		Candidates: candidates,
		Schema:     responseSchema,
		Constraints: []string{
			"items: one entry per candidate, using the candidate's exact id",
			"ranking: optimize strictly for fit with selected_moods",
			"ranking: matchedMoods is the primary signal; use description only for minor color",
			"facts: do not fabricate anything about a game that is not in its title, description or matchedMoods",
			"score: number from 0 to 100, higher means a better fit",
			"reason: second person, no spoilers, 1-2 sentences, at most about 40 words",
			"reason: name the game exactly once",
			"reason: reference at least one selected mood by name",
			"reason: include one concrete hook (a mechanic, the pacing, or the vibe)",
			"reason: do not repeat phrasing across items",
			"output: a single JSON object with an items array of {id, score, reason}",
		},
	}
}

// System renders the system instruction.
// Sections are always emitted in the same order.
func (p *Prompt) System() string {
	var sections []string

	if p.Task != "" {
		sections = append(sections, "Task: "+p.Task)
	}

	if p.Schema != "" {
		sections = append(sections, "Return JSON:\n"+p.Schema)
	}

	if len(p.Constraints) > 0 {
		con := "Constraints:\n"
		for _, c := range p.Constraints {
			con += "- " + c + "\n"
		}
		sections = append(sections, strings.TrimSpace(con))
	}

	return strings.Join(sections, "\n\n")
}

// StrictSystem renders the system instruction used by the repair retry.
func (p *Prompt) StrictSystem() string {
	return p.System() + "\n\n" + StrictDirective
}

type promptCandidate struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	MatchedMoods []string `json:"matchedMoods"`
}

type promptPayload struct {
	SelectedMoods []string          `json:"selected_moods"`
	Candidates    []promptCandidate `json:"candidates"`
}

// User renders the user payload as JSON.
// Descriptions are cut to DescriptionLimit runes and missing mood lists
// are sent as empty arrays.
func (p *Prompt) User() string {
	payload := promptPayload{
		SelectedMoods: nonNil(p.Moods),
		Candidates:    make([]promptCandidate, len(p.Candidates)),
	}
	for i, c := range p.Candidates {
		payload.Candidates[i] = promptCandidate{
			ID:           c.ID,
			Title:        c.Title,
			Description:  truncateRunes(c.Description, DescriptionLimit),
			MatchedMoods: nonNil(c.MatchedMoods),
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return `{"selected_moods":[],"candidates":[]}`
	}
	return string(data)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// truncateRunes cuts s to at most n runes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
