package moodrank

// Inference parameters for the two model attempts.
// The primary attempt allows a little variation in phrasing; the strict
// retry is fully deterministic.
const (
	// DefaultTemperature is used for the primary attempt.
	DefaultTemperature float32 = 0.2

	// StrictTemperature is used for the repair retry.
	StrictTemperature float32 = 0

	// DefaultMaxTokens bounds the model output for both attempts.
	DefaultMaxTokens = 800
)

// Size limits applied to text moving in and out of the pipeline.
const (
	// DescriptionLimit is the number of runes of a description sent to the model.
	DescriptionLimit = 400

	// SnippetLimit is the number of runes of a description quoted by the fallback generator.
	SnippetLimit = 120

	// MinScore and MaxScore bound scores parsed from model output.
	MinScore = 0
	MaxScore = 100
)
