package moodrank

// RerankRequest flows through the recovery pipeline.
// Each stage reads the input and primary fields; the stage that succeeds
// writes the output fields.
type RerankRequest struct {
	// Input fields
	Moods      []string    // Selected moods, in caller order
	Candidates []Candidate // Candidates to rank
	Prompt     *Prompt     // Prompt built from the input

	// Rendered once per request
	System       string // Primary system instruction
	StrictSystem string // System instruction for the repair retry
	User         string // User payload

	// Metadata fields
	RequestID    string // Unique identifier for this request
	ProviderName string // Name of the provider being used

	// Primary attempt (populated by primary-call)
	Raw          string // Raw text of the primary response
	TransportErr error  // Set when the primary call produced no text

	// Output fields (populated by the stage that succeeds)
	Items []RankedItem
	Stage Stage
}

// InferenceCall flows through the inference terminal and the Options
// wrapped around it.
type InferenceCall struct {
	Request   InferenceRequest // What the provider receives
	RequestID string           // RerankRequest this call belongs to

	// Output fields (populated by the terminal)
	Response     string
	Usage        *TokenUsage
	Model        string
	FinishReason string
}
