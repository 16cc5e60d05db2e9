package usecase

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
)

// RateLimiter gates autonomous responses on the time since the last one.
// Interval and quiet window are read from the runtime config on every call.
type RateLimiter struct {
	mu       sync.Mutex
	cfg      *domain.RuntimeConfig
	lastSaid time.Time
}

// NewRateLimiter creates a limiter that allows the first response immediately
func NewRateLimiter(cfg *domain.RuntimeConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg}
}

// Allow reports whether an autonomous response may be emitted at now
func (l *RateLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSaid.IsZero() || now.Sub(l.lastSaid) >= l.cfg.Interval()
}

// MarkSpoken records a response scheduled at now
func (l *RateLimiter) MarkSpoken(now time.Time) {
	l.mu.Lock()
	l.lastSaid = now
	l.mu.Unlock()
}

// Quiet mutes autonomous responses for the quiet window
func (l *RateLimiter) Quiet(now time.Time) {
	l.mu.Lock()
	l.lastSaid = now.Add(l.cfg.QuietWindow() - l.cfg.Interval())
	l.mu.Unlock()
}

// Speak makes the next candidate response eligible immediately
func (l *RateLimiter) Speak(now time.Time) {
	l.mu.Lock()
	l.lastSaid = now.Add(-l.cfg.Interval())
	l.mu.Unlock()
}

// LastSpokenAt returns the current limiter timestamp
func (l *RateLimiter) LastSpokenAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSaid
}

// ReplyDelay draws a human-looking latency for autonomous replies
type ReplyDelay struct {
	Min time.Duration
	Max time.Duration
	// rnd returns a value in [0, n); nil uses math/rand
	rnd func(n int64) int64
}

// NewReplyDelay creates a delay source in [min, max]
func NewReplyDelay(min, max time.Duration) *ReplyDelay {
	if max < min {
		max = min
	}
	return &ReplyDelay{Min: min, Max: max, rnd: rand.Int64N}
}

// Next returns the next delay
func (d *ReplyDelay) Next() time.Duration {
	span := int64(d.Max - d.Min)
	if span <= 0 || d.rnd == nil {
		return d.Min
	}
	return d.Min + time.Duration(d.rnd(span+1))
}
