package moodrank

// Stage identifies the pipeline state that produced a response.
// States only ever move forward: DirectParse → RegexExtract → JSONRepair →
// StrictRetry → LocalFallback.
type Stage int

const (
	StageDirectParse Stage = iota
	StageRegexExtract
	StageJSONRepair
	StageStrictRetry
	StageLocalFallback
)

// String returns the stage name used in hooks and metrics.
func (s Stage) String() string {
	switch s {
	case StageDirectParse:
		return "direct-parse"
	case StageRegexExtract:
		return "regex-extract"
	case StageJSONRepair:
		return "json-repair"
	case StageStrictRetry:
		return "strict-retry"
	case StageLocalFallback:
		return "local-fallback"
	default:
		return "unknown"
	}
}

// FromModel reports whether the items came from model output rather than
// local synthesis. Scores are bounded to [0, 100] only on these stages.
func (s Stage) FromModel() bool {
	return s != StageLocalFallback
}
