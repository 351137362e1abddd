// Package ratelimit paces requests to the catalog API. It combines a local
// token bucket with the server's X-RateLimit-* headers so a client stops
// sending once the server reports the window as used up.
package ratelimit

import (
	"time"
)

// Rate limit headers understood by UpdateFromHeaders.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// ThrottleRemaining is the remaining-request count below which requests are
// delayed by the tracker's throttle delay.
const ThrottleRemaining = 5

// epochCutoff separates "seconds until reset" from absolute Unix timestamps
// in the reset header.
const epochCutoff = 1_000_000_000

// State is the server-reported rate limit window.
type State struct {
	// Known is false until the first response carried rate limit headers.
	Known bool `json:"known"`

	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// ResetAt is when the server's window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last updated from headers.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock returns true when the server has no requests left in the
// current window.
func (s State) NeedsBlock() bool {
	return s.Known && s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true when the window is nearly used up.
func (s State) NeedsThrottling() bool {
	return s.Known && s.Remaining > 0 && s.Remaining < ThrottleRemaining
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// resetTime interprets a reset header value as either seconds from now or
// an absolute Unix timestamp.
func resetTime(now time.Time, value int64) time.Time {
	if value >= epochCutoff {
		return time.Unix(value, 0)
	}
	return now.Add(time.Duration(value) * time.Second)
}
