package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrBlocked is returned by Wait when the server reported an exhausted window.
var ErrBlocked = errors.New("rate limit window exhausted")

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_rate_limit_remaining",
		Help: "Requests remaining in the catalog API rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_blocks_total",
		Help: "Total number of requests refused because the window was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the window was nearly exhausted",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_rate_limit_wait_seconds",
		Help:    "Time spent waiting on the local token bucket",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Config holds tracker configuration.
type Config struct {
	// RequestsPerSecond is the local pacing rate. Zero or negative disables
	// local pacing.
	RequestsPerSecond float64

	// Burst is the token bucket size (minimum 1).
	Burst int

	// ThrottleDelay is the extra delay applied when the server window is
	// nearly exhausted.
	ThrottleDelay time.Duration
}

// DefaultConfig matches the public artic.edu guidance of 60 requests per
// minute.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 1,
		Burst:             5,
		ThrottleDelay:     1 * time.Second,
	}
}

// Tracker gates outgoing requests.
type Tracker struct {
	limiter       *rate.Limiter
	throttleDelay time.Duration
	logger        zerolog.Logger

	mu    sync.RWMutex
	state State
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Tracker{
		limiter:       rate.NewLimiter(limit, burst),
		throttleDelay: cfg.ThrottleDelay,
		logger:        logger,
	}
}

// State returns the last server-reported window.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Wait blocks until a request may be sent. It returns ErrBlocked without
// waiting when the server window is exhausted, and the context error when
// ctx ends first.
func (t *Tracker) Wait(ctx context.Context) error {
	state := t.State()

	if state.NeedsBlock() {
		rateLimitBlocksTotal.Inc()
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("reset_in", state.TimeUntilReset()).
			Msg("Rate limit window exhausted - refusing request")
		return fmt.Errorf("%w: resets in %s", ErrBlocked, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		rateLimitThrottlesTotal.Inc()
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("Rate limit window low - throttling request")

		timer := time.NewTimer(t.throttleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// UpdateFromHeaders records the server's rate limit headers. Responses
// without them leave the state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	now := time.Now()
	state := State{
		Known:      true,
		Remaining:  remain,
		LastUpdate: now,
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = resetTime(now, reset)
	} else {
		state.ResetAt = now.Add(time.Minute)
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	rateLimitRemaining.Set(float64(remain))

	switch {
	case state.NeedsBlock():
		t.logger.Warn().Int("remaining", remain).Time("reset_at", state.ResetAt).Msg("Rate limit window exhausted")
	case state.NeedsThrottling():
		t.logger.Info().Int("remaining", remain).Time("reset_at", state.ResetAt).Msg("Rate limit window low")
	default:
		t.logger.Debug().Int("remaining", remain).Int("limit", state.Limit).Msg("Rate limit state updated")
	}

	return nil
}
