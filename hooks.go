package moodrank

import "github.com/zoobzio/capitan"

// Signals for hook events.
const (
	RerankStarted         = capitan.Signal("rerank.started")
	RerankCompleted       = capitan.Signal("rerank.completed")
	StageFailed           = capitan.Signal("rerank.stage.failed")
	ProviderCallStarted   = capitan.Signal("rerank.provider.call.started")
	ProviderCallCompleted = capitan.Signal("rerank.provider.call.completed")
	ProviderCallFailed    = capitan.Signal("rerank.provider.call.failed")
)

// Attempt labels for provider calls.
const (
	AttemptPrimary = "primary"
	AttemptStrict  = "strict"
)

// Error type labels for StageFailed.
const (
	ErrorTypeTransport = "transport"
	ErrorTypeParse     = "parse"
)

// Keys for hook event fields.
var (
	// Request identification.
	RequestIDKey   = capitan.NewStringKey("rerank.request.id")
	StageKey       = capitan.NewStringKey("rerank.stage")
	AttemptKey     = capitan.NewStringKey("rerank.attempt")
	TemperatureKey = capitan.NewFloat64Key("rerank.temperature")

	// Input/Output sizes.
	MoodsKey          = capitan.NewStringKey("rerank.moods")
	CandidateCountKey = capitan.NewIntKey("rerank.candidates")
	ItemCountKey      = capitan.NewIntKey("rerank.items")

	// Response data.
	ResponseKey = capitan.NewStringKey("rerank.response")

	// Error information.
	ErrorKey     = capitan.NewStringKey("rerank.error")
	ErrorTypeKey = capitan.NewStringKey("rerank.error.type")

	// Provider information.
	ProviderKey = capitan.NewStringKey("rerank.provider")
	ModelKey    = capitan.NewStringKey("rerank.model")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("rerank.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("rerank.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("rerank.tokens.total")
	DurationMsKey       = capitan.NewIntKey("rerank.duration.ms")

	// HTTP/API metadata.
	HTTPStatusCodeKey       = capitan.NewIntKey("rerank.http.status.code")
	ResponseFinishReasonKey = capitan.NewStringKey("rerank.response.finish.reason")
)
