package usecase

import (
	"testing"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
)

func newTestLimiter(interval, quiet time.Duration) *RateLimiter {
	cfg := domain.NewRuntimeConfig(nil)
	cfg.SetInterval(interval)
	cfg.SetQuietWindow(quiet)
	return NewRateLimiter(cfg)
}

func TestRateLimiterInterval(t *testing.T) {
	l := newTestLimiter(60*time.Second, 10*time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if !l.Allow(t0) {
		t.Fatal("Expected first response to be allowed")
	}
	l.MarkSpoken(t0)

	if l.Allow(t0.Add(30 * time.Second)) {
		t.Error("Expected response at t0+30s to be suppressed")
	}
	if !l.Allow(t0.Add(61 * time.Second)) {
		t.Error("Expected response at t0+61s to be allowed")
	}
	if !l.Allow(t0.Add(60 * time.Second)) {
		t.Error("Expected response exactly at the interval to be allowed")
	}
}

func TestRateLimiterQuietThenSpeak(t *testing.T) {
	l := newTestLimiter(60*time.Second, 10*time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Quiet(t0)
	if l.Allow(t0.Add(30 * time.Second)) {
		t.Error("Expected response within interval after quiet to be suppressed")
	}
	if l.Allow(t0.Add(9 * time.Minute)) {
		t.Error("Expected response inside the quiet window to be suppressed")
	}
	if !l.Allow(t0.Add(10 * time.Minute)) {
		t.Error("Expected response after the quiet window to be allowed")
	}

	l.Speak(t0.Add(time.Second))
	if !l.Allow(t0.Add(time.Second)) {
		t.Error("Expected speak to restore immediate eligibility")
	}
}

func TestRateLimiterFollowsConfigChanges(t *testing.T) {
	cfg := domain.NewRuntimeConfig(nil)
	cfg.SetInterval(time.Hour)
	l := NewRateLimiter(cfg)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.MarkSpoken(t0)

	if l.Allow(t0.Add(time.Minute)) {
		t.Error("Expected suppression under a one hour interval")
	}
	cfg.SetInterval(30 * time.Second)
	if !l.Allow(t0.Add(time.Minute)) {
		t.Error("Expected new interval to apply immediately")
	}
}

func TestReplyDelay(t *testing.T) {
	d := NewReplyDelay(time.Second, 4*time.Second)
	for i := 0; i < 100; i++ {
		got := d.Next()
		if got < time.Second || got > 4*time.Second {
			t.Fatalf("Delay %v out of range", got)
		}
	}

	fixed := NewReplyDelay(2*time.Second, time.Second)
	if fixed.Next() != 2*time.Second {
		t.Errorf("Expected inverted range to collapse to min, got %v", fixed.Next())
	}
}
