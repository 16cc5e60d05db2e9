package biz

import (
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Store   *usecase.StoreUsecase
	Config  *usecase.ConfigUsecase
	Limiter *usecase.RateLimiter
	Matcher *usecase.Matcher
	Delay   *usecase.ReplyDelay
}

// NewUsecases builds the usecases sharing one runtime config
func NewUsecases(
	index repo.TriggerIndex,
	settings repo.SettingsRepo,
	runtime *domain.RuntimeConfig,
	delayMin, delayMax time.Duration,
) *Usecases {
	return &Usecases{
		Store:   usecase.NewStoreUsecase(index),
		Config:  usecase.NewConfigUsecase(settings, runtime),
		Limiter: usecase.NewRateLimiter(runtime),
		Matcher: usecase.NewMatcher(),
		Delay:   usecase.NewReplyDelay(delayMin, delayMax),
	}
}
