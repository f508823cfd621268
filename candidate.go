package moodrank

// Candidate is one game eligible for ranking.
type Candidate struct {
	ID           string   `json:"id" yaml:"id" validate:"required"`
	Title        string   `json:"title" yaml:"title"`
	Description  string   `json:"description,omitempty" yaml:"description"`
	MatchedMoods []string `json:"matchedMoods,omitempty" yaml:"matchedMoods"`
}

// RankedItem is one element of a ranking.
type RankedItem struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Response is the result of a Rerank call.
// Stage is not serialized: an LLM-ranked list and a locally synthesized one
// look the same to whoever consumes the JSON.
type Response struct {
	Items []RankedItem `json:"items"`
	Stage Stage        `json:"-"`
}

// candidateIndex maps candidate ids to their position in the input.
// When ids repeat, the first occurrence wins.
func candidateIndex(candidates []Candidate) map[string]*Candidate {
	index := make(map[string]*Candidate, len(candidates))
	for i := range candidates {
		if _, ok := index[candidates[i].ID]; !ok {
			index[candidates[i].ID] = &candidates[i]
		}
	}
	return index
}
