// Package worker runs provider calls off the caller's goroutine and
// delivers each outcome exactly once on a buffered channel. It also records
// Prometheus metrics for every call.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/mobchat/pkg/llm"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Prometheus provider call metrics.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of provider calls by outcome.",
		},
		[]string{"provider", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Provider call duration in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		},
		[]string{"provider"},
	)
	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total number of tokens reported by providers.",
		},
		[]string{"provider"},
	)
	inFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_requests_in_flight",
			Help: "Provider calls currently running.",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(tokensTotal)
	prometheus.MustRegister(inFlight)
}

// OutcomeSuccess is the outcome label recorded for successful calls.
// Failed calls are labelled with their llm.ErrCode* value.
const OutcomeSuccess = "success"

// Call performs one backend round trip. It returns the generated content
// and token usage, or an error (ideally an *llm.ProviderError). The logger
// carries the provider name and a per-call request ID.
type Call func(ctx context.Context, logger *zap.Logger) (content string, tokensUsed int, err error)

// Run starts call on a new goroutine and returns a channel that receives
// exactly one result and is then closed. Cancellation of ctx is not
// propagated: once dispatched, a call runs until the transport finishes or
// times out. Context values are kept.
func Run(ctx context.Context, provider string, logger *zap.Logger, call Call) <-chan llm.Result {
	out := make(chan llm.Result, 1)
	ctx = context.WithoutCancel(ctx)
	callLogger := logger.With(
		zap.String("provider", provider),
		zap.String("request_id", uuid.NewString()),
	)

	inFlight.WithLabelValues(provider).Inc()
	go func() {
		defer close(out)
		defer inFlight.WithLabelValues(provider).Dec()

		start := time.Now()
		result := execute(ctx, callLogger, call)
		elapsed := time.Since(start)

		requestDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
		if result.OK() {
			requestsTotal.WithLabelValues(provider, OutcomeSuccess).Inc()
			tokensTotal.WithLabelValues(provider).Add(float64(result.TokensUsed()))
		} else {
			requestsTotal.WithLabelValues(provider, result.Code()).Inc()
		}

		callLogger.Debug("provider call completed",
			zap.Duration("duration", elapsed),
			zap.Bool("success", result.OK()),
			zap.Int("tokens_used", result.TokensUsed()),
			zap.String("code", result.Code()),
		)
		out <- result
	}()
	return out
}

// Reject returns a channel already holding a failure, without starting a
// goroutine. Used when a provider refuses a call before any I/O.
func Reject(provider, code, message string) <-chan llm.Result {
	out := make(chan llm.Result, 1)
	requestsTotal.WithLabelValues(provider, code).Inc()
	out <- llm.Failure(code, message)
	close(out)
	return out
}

func execute(ctx context.Context, logger *zap.Logger, call Call) (result llm.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("provider call panicked", zap.Any("panic", r))
			result = llm.Failure(llm.ErrCodeUnknown, fmt.Sprintf("Unexpected error: %v", r))
		}
	}()

	content, tokens, err := call(ctx, logger)
	if err != nil {
		return llm.FailureFromError(err)
	}
	return llm.Success(content, tokens)
}
