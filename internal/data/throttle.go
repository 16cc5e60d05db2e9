package data

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/socky-bot/socky/internal/biz/repo"
)

// throttledChat spaces outbound lines so chunked listings do not trip
// server flood limits
type throttledChat struct {
	repo.ChatRepo
	limiter *rate.Limiter
}

// NewThrottledChat wraps inner with a token bucket of perSecond lines and burst.
// A non-positive rate returns inner unchanged.
func NewThrottledChat(inner repo.ChatRepo, perSecond float64, burst int) repo.ChatRepo {
	if perSecond <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &throttledChat{
		ChatRepo: inner,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *throttledChat) Send(ctx context.Context, target, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.ChatRepo.Send(ctx, target, text)
}

func (t *throttledChat) SendAction(ctx context.Context, target, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.ChatRepo.SendAction(ctx, target, text)
}
