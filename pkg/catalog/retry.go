package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	catalogRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of page fetch retry attempts by error class",
	}, []string{"error_class"})

	catalogRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	catalogRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns the backoff shape for an error class,
// keeping the attempt budget of base.
func RetryConfigForErrorClass(base RetryConfig, errorClass ErrorClass) RetryConfig {
	cfg := base
	switch errorClass {
	case ErrorClassServer:
		cfg.MaxBackoff = min(cfg.MaxBackoff, 10*time.Second)
	case ErrorClassRateLimit:
		// a 429 needs more room than a flaky connection
		cfg.InitialBackoff = cfg.InitialBackoff * 5
		cfg.MaxBackoff = max(cfg.MaxBackoff, 60*time.Second)
	case ErrorClassNetwork:
		cfg.InitialBackoff = cfg.InitialBackoff * 2
	}
	return cfg
}

// RetryFetcher wraps a PageFetcher with caller-side retries. Only server,
// rate limit, and network failures are retried.
type RetryFetcher struct {
	next   PageFetcher
	config RetryConfig
	logger zerolog.Logger

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryFetcher wraps next. A MaxAttempts below 1 is treated as 1.
func NewRetryFetcher(next PageFetcher, cfg RetryConfig) *RetryFetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	return &RetryFetcher{
		next:   next,
		config: cfg,
		logger: log.With().Str("component", "catalog-retry").Logger(),
		sleep:  sleepContext,
	}
}

// FetchPage implements PageFetcher.
func (r *RetryFetcher) FetchPage(ctx context.Context, pageIndex, pageSize int) (*Page, error) {
	var page *Page
	err := r.retryWithBackoff(ctx, func() error {
		var err error
		page, err = r.next.FetchPage(ctx, pageIndex, pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// retryWithBackoff executes fn with exponential backoff and ±20% jitter,
// classifying each failure to pick the backoff shape.
func (r *RetryFetcher) retryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	var errorClass ErrorClass
	var backoff time.Duration

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info().
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Fetch succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass = ClassOf(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		cfg := RetryConfigForErrorClass(r.config, errorClass)
		if attempt == 1 {
			backoff = cfg.InitialBackoff
		}

		catalogRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		catalogRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		r.logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying fetch after backoff")

		if err := r.sleep(ctx, jitter); err != nil {
			r.logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w: %w", ErrContextCancelled, err, lastErr)
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	if r.config.MaxAttempts == 1 {
		return lastErr
	}

	catalogRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	r.logger.Warn().
		Str("error_class", string(errorClass)).
		Int("max_attempts", r.config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.config.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
