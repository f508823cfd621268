package telemetry

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/moodrank"
	"go.uber.org/zap"
)

// Outcome labels for provider_calls_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Bridge observes moodrank hook events and forwards them to a logger and
// metrics. Either sink may be nil.
type Bridge struct {
	log     *zap.Logger
	metrics *Metrics
}

// NewBridge creates a Bridge.
func NewBridge(log *zap.Logger, metrics *Metrics) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{log: log, metrics: metrics}
}

// Attach starts observing hook events. The returned func stops observation.
func (b *Bridge) Attach() (stop func()) {
	observer := capitan.Observe(func(ctx context.Context, e *capitan.Event) {
		b.Handle(ctx, e)
	})
	return func() { observer.Close() }
}

// Handle processes a single event. Events from other signals are ignored.
func (b *Bridge) Handle(_ context.Context, e *capitan.Event) {
	requestID, _ := moodrank.RequestIDKey.From(e)
	provider, _ := moodrank.ProviderKey.From(e)
	base := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("provider", provider),
	}

	switch e.Signal() {
	case moodrank.RerankStarted:
		moods, _ := moodrank.MoodsKey.From(e)
		count, _ := moodrank.CandidateCountKey.From(e)
		b.log.Debug("rerank started", append(base,
			zap.String("moods", moods),
			zap.Int("candidates", count),
		)...)

	case moodrank.RerankCompleted:
		stage, _ := moodrank.StageKey.From(e)
		items, _ := moodrank.ItemCountKey.From(e)
		b.log.Info("rerank completed", append(base,
			zap.String("stage", stage),
			zap.Int("items", items),
		)...)
		if b.metrics != nil {
			b.metrics.reranks.WithLabelValues(stage).Inc()
			b.metrics.itemsReturned.Observe(float64(items))
		}

	case moodrank.StageFailed:
		stage, _ := moodrank.StageKey.From(e)
		errType, _ := moodrank.ErrorTypeKey.From(e)
		msg, _ := moodrank.ErrorKey.From(e)
		b.log.Warn("rerank stage failed", append(base,
			zap.String("stage", stage),
			zap.String("error_type", errType),
			zap.String("error", msg),
		)...)
		if b.metrics != nil {
			b.metrics.stageFailures.WithLabelValues(stage, errType).Inc()
		}

	case moodrank.ProviderCallStarted:
		attempt, _ := moodrank.AttemptKey.From(e)
		temp, _ := moodrank.TemperatureKey.From(e)
		b.log.Debug("provider call started", append(base,
			zap.String("attempt", attempt),
			zap.Float64("temperature", temp),
		)...)

	case moodrank.ProviderCallCompleted:
		attempt, _ := moodrank.AttemptKey.From(e)
		ms, _ := moodrank.DurationMsKey.From(e)
		model, _ := moodrank.ModelKey.From(e)
		total, _ := moodrank.TotalTokensKey.From(e)
		reason, _ := moodrank.ResponseFinishReasonKey.From(e)
		b.log.Debug("provider call completed", append(base,
			zap.String("attempt", attempt),
			zap.String("model", model),
			zap.Int("duration_ms", ms),
			zap.Int("total_tokens", total),
			zap.String("finish_reason", reason),
		)...)
		b.observeCall(provider, attempt, OutcomeSuccess, ms)

	case moodrank.ProviderCallFailed:
		attempt, _ := moodrank.AttemptKey.From(e)
		ms, _ := moodrank.DurationMsKey.From(e)
		msg, _ := moodrank.ErrorKey.From(e)
		fields := append(base,
			zap.String("attempt", attempt),
			zap.Int("duration_ms", ms),
			zap.String("error", msg),
		)
		if status, ok := moodrank.HTTPStatusCodeKey.From(e); ok {
			fields = append(fields, zap.Int("status", status))
		}
		b.log.Warn("provider call failed", fields...)
		b.observeCall(provider, attempt, OutcomeFailure, ms)
	}
}

func (b *Bridge) observeCall(provider, attempt, outcome string, ms int) {
	if b.metrics == nil {
		return
	}
	b.metrics.providerCalls.WithLabelValues(provider, attempt, outcome).Inc()
	b.metrics.callDuration.WithLabelValues(provider, attempt).Observe(float64(ms) / 1000)
}
