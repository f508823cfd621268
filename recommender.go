package moodrank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Settings tunes the inference attempts and the recovery chain.
type Settings struct {
	Temperature *float32 // Primary attempt; nil means DefaultTemperature
	MaxTokens   int     // Both attempts; 0 means DefaultMaxTokens
	JSONRepair  bool    // Insert the JSONRepair stage before the strict retry
}

// Recommender ranks candidates against moods with a provider, repairing or
// replacing model output as needed.
//
// A Recommender holds no per-call state and is safe for concurrent use once
// configured.
type Recommender struct {
	provider  Provider
	inference pipz.Chainable[*InferenceCall]
	settings  Settings
	pipeline  pipz.Chainable[*RerankRequest]
}

// NewTerminal creates the processor that performs one provider call.
// Options wrap this processor, never the recovery chain, so they cannot add
// attempts to it.
func NewTerminal(provider Provider) pipz.Chainable[*InferenceCall] {
	return pipz.Apply("inference", func(ctx context.Context, call *InferenceCall) (*InferenceCall, error) {
		resp, err := provider.Call(ctx, &call.Request)
		if err != nil {
			return call, err
		}
		call.Response = resp.Content
		call.Usage = &resp.Usage
		call.Model = resp.Model
		call.FinishReason = resp.FinishReason
		return call, nil
	})
}

// New creates a Recommender bound to a provider.
//
// Example:
//
//	rec := moodrank.New(provider,
//	    moodrank.WithTimeout(15*time.Second),
//	    moodrank.WithCircuitBreaker(5, 30*time.Second),
//	)
func New(provider Provider, opts ...Option) *Recommender {
	inference := NewTerminal(provider)
	for _, opt := range opts {
		inference = opt(inference)
	}

	r := &Recommender{
		provider:  provider,
		inference: inference,
	}
	r.pipeline = r.buildPipeline()
	return r
}

// WithSettings replaces the recommender's settings.
// Call it before the recommender is shared between goroutines.
func (r *Recommender) WithSettings(settings Settings) *Recommender {
	r.settings = settings
	r.pipeline = r.buildPipeline()
	return r
}

// Settings returns the effective settings.
func (r *Recommender) Settings() Settings {
	s := r.settings
	if s.Temperature == nil {
		t := DefaultTemperature
		s.Temperature = &t
	} else {
		t := *s.Temperature
		s.Temperature = &t
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// GetPipeline returns the recovery pipeline for composition and inspection.
func (r *Recommender) GetPipeline() pipz.Chainable[*RerankRequest] {
	return r.pipeline
}

// buildPipeline assembles primary-call followed by the recovery chain.
// Each recovery stage falls through to the next on failure; local-fallback
// always succeeds, so the chain as a whole cannot fail.
func (r *Recommender) buildPipeline() pipz.Chainable[*RerankRequest] {
	primary := pipz.Apply("primary-call", func(ctx context.Context, req *RerankRequest) (*RerankRequest, error) {
		raw, err := r.infer(ctx, req, false)
		if err != nil {
			req.TransportErr = err
			return req, nil
		}
		req.Raw = raw
		return req, nil
	})

	direct := r.parseStage(StageDirectParse, func(_ context.Context, req *RerankRequest) (string, error) {
		if req.TransportErr != nil {
			return "", req.TransportErr
		}
		return req.Raw, nil
	})

	extract := r.parseStage(StageRegexExtract, func(_ context.Context, req *RerankRequest) (string, error) {
		if req.TransportErr != nil {
			return "", req.TransportErr
		}
		return extractObject(req.Raw)
	})

	repair := r.parseStage(StageJSONRepair, func(_ context.Context, req *RerankRequest) (string, error) {
		if req.TransportErr != nil {
			return "", req.TransportErr
		}
		return repairObject(req.Raw)
	})

	strict := r.parseStage(StageStrictRetry, func(ctx context.Context, req *RerankRequest) (string, error) {
		return r.infer(ctx, req, true)
	})

	local := pipz.Apply(StageLocalFallback.String(), func(_ context.Context, req *RerankRequest) (*RerankRequest, error) {
		req.Items = FallbackRank(req.Moods, req.Candidates)
		req.Stage = StageLocalFallback
		return req, nil
	})

	var recovery pipz.Chainable[*RerankRequest] = local
	recovery = pipz.NewFallback("strict-or-local", strict, recovery)
	if r.settings.JSONRepair {
		recovery = pipz.NewFallback("repair-or-retry", repair, recovery)
	}
	recovery = pipz.NewFallback("extract-or-recover", extract, recovery)
	recovery = pipz.NewFallback("parse-or-recover", direct, recovery)

	return pipz.NewSequence("rerank", primary, recovery)
}

// parseStage builds a recovery stage: obtain text from source, sanitize it,
// and record the stage on success.
func (r *Recommender) parseStage(stage Stage, source func(context.Context, *RerankRequest) (string, error)) pipz.Chainable[*RerankRequest] {
	return pipz.Apply(stage.String(), func(ctx context.Context, req *RerankRequest) (*RerankRequest, error) {
		text, err := source(ctx, req)
		if err == nil {
			var items []RankedItem
			items, err = Sanitize(text, req.Candidates)
			if err == nil {
				req.Items = items
				req.Stage = stage
				return req, nil
			}
		}

		errType := ErrorTypeParse
		if errors.Is(err, ErrTransport) {
			errType = ErrorTypeTransport
		}
		capitan.Emit(ctx, StageFailed,
			RequestIDKey.Field(req.RequestID),
			ProviderKey.Field(req.ProviderName),
			StageKey.Field(stage.String()),
			ErrorKey.Field(err.Error()),
			ErrorTypeKey.Field(errType),
		)
		return req, err
	})
}

// infer performs one provider call through the inference chain.
// Every failure, including a provider panic, comes back as an error
// matching ErrTransport.
func (r *Recommender) infer(ctx context.Context, req *RerankRequest, strict bool) (raw string, err error) {
	settings := r.Settings()
	call := &InferenceCall{
		Request: InferenceRequest{
			System:      req.System,
			User:        req.User,
			Temperature: *settings.Temperature,
			JSONMode:    true,
			MaxTokens:   settings.MaxTokens,
		},
		RequestID: req.RequestID,
	}
	attempt := AttemptPrimary
	if strict {
		call.Request.System = req.StrictSystem
		call.Request.Temperature = StrictTemperature
		call.Request.Strict = true
		attempt = AttemptStrict
	}

	capitan.Emit(ctx, ProviderCallStarted,
		RequestIDKey.Field(req.RequestID),
		ProviderKey.Field(req.ProviderName),
		AttemptKey.Field(attempt),
		TemperatureKey.Field(float64(call.Request.Temperature)),
	)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("provider panic: %v", p)
		}
		if err == nil {
			return
		}
		if !errors.Is(err, ErrTransport) {
			err = &TransportError{Provider: req.ProviderName, Err: err}
		}

		fields := []capitan.Field{
			RequestIDKey.Field(req.RequestID),
			ProviderKey.Field(req.ProviderName),
			AttemptKey.Field(attempt),
			ErrorKey.Field(err.Error()),
			DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		}
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode != 0 {
			fields = append(fields, HTTPStatusCodeKey.Field(te.StatusCode))
		}
		capitan.Emit(ctx, ProviderCallFailed, fields...)
	}()

	if _, err = r.inference.Process(ctx, call); err != nil {
		return "", err
	}

	fields := []capitan.Field{
		RequestIDKey.Field(req.RequestID),
		ProviderKey.Field(req.ProviderName),
		AttemptKey.Field(attempt),
		DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		ResponseKey.Field(call.Response),
	}
	if call.Model != "" {
		fields = append(fields, ModelKey.Field(call.Model))
	}
	if call.Usage != nil {
		fields = append(fields,
			PromptTokensKey.Field(call.Usage.Prompt),
			CompletionTokensKey.Field(call.Usage.Completion),
			TotalTokensKey.Field(call.Usage.Total),
		)
	}
	if call.FinishReason != "" {
		fields = append(fields, ResponseFinishReasonKey.Field(call.FinishReason))
	}
	capitan.Emit(ctx, ProviderCallCompleted, fields...)

	return call.Response, nil
}

// Rerank ranks candidates for the given moods.
//
// It always returns a well-formed response. When the model output cannot be
// used, the response comes from a later recovery stage; Response.Stage says
// which one. The only outbound calls are the primary attempt and at most one
// strict retry. Cancelling ctx aborts an in-flight call and sends the
// request to the local fallback.
func (r *Recommender) Rerank(ctx context.Context, moods []string, candidates []Candidate) Response {
	requestID := uuid.New().String()

	capitan.Emit(ctx, RerankStarted,
		RequestIDKey.Field(requestID),
		ProviderKey.Field(r.provider.Name()),
		MoodsKey.Field(strings.Join(moods, ",")),
		CandidateCountKey.Field(len(candidates)),
	)

	// Nothing to rank: no call can change the answer
	if len(candidates) == 0 {
		r.completed(ctx, requestID, StageLocalFallback, 0)
		return Response{Items: []RankedItem{}, Stage: StageLocalFallback}
	}

	prompt := BuildPrompt(moods, candidates)
	req := &RerankRequest{
		Moods:        moods,
		Candidates:   candidates,
		Prompt:       prompt,
		System:       prompt.System(),
		StrictSystem: prompt.StrictSystem(),
		User:         prompt.User(),
		RequestID:    requestID,
		ProviderName: r.provider.Name(),
	}

	if _, err := r.pipeline.Process(ctx, req); err != nil {
		// local-fallback cannot fail; keep the guarantee if a stage is ever added that can
		req.Items = FallbackRank(moods, candidates)
		req.Stage = StageLocalFallback
	}

	items := req.Items
	if items == nil {
		items = []RankedItem{}
	}
	r.completed(ctx, requestID, req.Stage, len(items))

	return Response{Items: items, Stage: req.Stage}
}

func (r *Recommender) completed(ctx context.Context, requestID string, stage Stage, count int) {
	capitan.Emit(ctx, RerankCompleted,
		RequestIDKey.Field(requestID),
		ProviderKey.Field(r.provider.Name()),
		StageKey.Field(stage.String()),
		ItemCountKey.Field(count),
	)
}
