package moodrank

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zoobzio/pipz"
)

// Option wraps the inference terminal with reliability features.
// Options apply to each provider call individually; they never add calls.
type Option func(pipz.Chainable[*InferenceCall]) pipz.Chainable[*InferenceCall]

// WithTimeout bounds each provider call.
// A call exceeding this duration is canceled and counts as a transport failure.
func WithTimeout(duration time.Duration) Option {
	return func(pipeline pipz.Chainable[*InferenceCall]) pipz.Chainable[*InferenceCall] {
		return pipz.NewTimeout("timeout", pipeline, duration)
	}
}

// WithCircuitBreaker adds circuit breaker protection to provider calls.
// After 'failures' consecutive failures, the circuit opens for 'recovery' duration
// and calls fail immediately, sending requests straight to the local fallback.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(pipeline pipz.Chainable[*InferenceCall]) pipz.Chainable[*InferenceCall] {
		return pipz.NewCircuitBreaker("circuit-breaker", pipeline, failures, recovery)
	}
}

// WithRateLimit adds rate limiting to provider calls.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(pipeline pipz.Chainable[*InferenceCall]) pipz.Chainable[*InferenceCall] {
		rateLimiter := pipz.NewRateLimiter[*InferenceCall]("rate-limit", rps, burst)
		return pipz.NewSequence("rate-limited", rateLimiter, pipeline)
	}
}

// WithErrorHandler adds error handling to provider calls.
// The handler observes the failure; the call still fails.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*InferenceCall]]) Option {
	return func(pipeline pipz.Chainable[*InferenceCall]) pipz.Chainable[*InferenceCall] {
		return pipz.NewHandle("error-handler", pipeline, handler)
	}
}

// WithDebug writes each outgoing prompt and raw response to w.
func WithDebug(w io.Writer) Option {
	return func(pipeline pipz.Chainable[*InferenceCall]) pipz.Chainable[*InferenceCall] {
		return pipz.Apply("debug", func(ctx context.Context, call *InferenceCall) (*InferenceCall, error) {
			fmt.Fprintf(w, "\n=== DEBUG: Prompt (%s, temperature %.1f) ===\n", call.RequestID, call.Request.Temperature)
			fmt.Fprintln(w, call.Request.System)
			fmt.Fprintln(w, call.Request.User)
			fmt.Fprintln(w, "=====================")

			processed, err := pipeline.Process(ctx, call)
			if err != nil {
				fmt.Fprintf(w, "\n=== DEBUG: Error ===\n%v\n==================\n\n", err)
				return processed, err
			}

			fmt.Fprintln(w, "\n=== DEBUG: Raw Response ===")
			fmt.Fprintln(w, processed.Response)
			fmt.Fprintln(w, "===========================")
			return processed, nil
		})
	}
}
