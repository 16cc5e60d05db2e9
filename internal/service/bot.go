package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/biz/usecase"
	"github.com/socky-bot/socky/internal/logging"
	"github.com/socky-bot/socky/internal/metrics"
)

// sendTimeout bounds a deferred send once its delay has elapsed
const sendTimeout = 30 * time.Second

// BotService routes inbound events to the dispatcher or the responder
type BotService struct {
	dispatcher *Dispatcher
	store      *usecase.StoreUsecase
	matcher    *usecase.Matcher
	limiter    *usecase.RateLimiter
	delay      *usecase.ReplyDelay
	deferred   *DeferredTasks
	chat       repo.ChatRepo
	metrics    *metrics.Metrics

	now func() time.Time
	log zerolog.Logger
}

// NewBotService creates a new bot service
func NewBotService(
	dispatcher *Dispatcher,
	store *usecase.StoreUsecase,
	matcher *usecase.Matcher,
	limiter *usecase.RateLimiter,
	delay *usecase.ReplyDelay,
	deferred *DeferredTasks,
	chat repo.ChatRepo,
	m *metrics.Metrics,
) *BotService {
	return &BotService{
		dispatcher: dispatcher,
		store:      store,
		matcher:    matcher,
		limiter:    limiter,
		delay:      delay,
		deferred:   deferred,
		chat:       chat,
		metrics:    m,
		now:        time.Now,
		log:        logging.Get("responder"),
	}
}

// HandleEvent processes one inbound event
func (s *BotService) HandleEvent(ctx context.Context, ev *domain.InboundEvent) {
	s.metrics.Event(string(ev.Kind))

	if ev.Kind == domain.EventMessage {
		if text, ok := CommandText(ev.Text, s.chat.Nick()); ok {
			if err := s.dispatcher.Dispatch(ctx, ev, text); err != nil &&
				!errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrMalformed) {
				s.log.Warn().Err(err).Msg("Command failed")
			}
			return
		}
		s.respond(ctx, ev)
		return
	}

	if mt, ok := domain.MatchTypeForEvent(ev.Kind); ok {
		s.greet(ctx, ev, mt)
	}
}

// CommandText returns the command part of text addressed to nick.
// The nick is matched case-insensitively and the punctuation after it
// is dropped, keeping a leading '[' or ']'.
func CommandText(text, nick string) (string, bool) {
	if nick == "" || len(text) < len(nick) || !strings.EqualFold(text[:len(nick)], nick) {
		return "", false
	}
	rest := strings.TrimLeftFunc(text[len(nick):], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '[' && r != ']'
	})
	if rest == "" {
		return "", false
	}
	return rest, true
}

// respond answers a plain message from the trigger store
func (s *BotService) respond(ctx context.Context, ev *domain.InboundEvent) {
	if ev.Target == "" || strings.TrimSpace(ev.Text) == "" {
		return
	}

	now := s.now()
	if !s.limiter.Allow(now) {
		s.metrics.Response("rate_limited")
		return
	}

	hits, err := s.store.Search(ctx, usecase.BuildQuery(ev.Text), domain.AllTriggers())
	if err != nil {
		s.log.Error().Err(err).Msg("Trigger search failed")
		s.metrics.Response("error")
		return
	}

	rec, outcome := s.matcher.SelectMatch(ev.Text, hits)
	s.metrics.Response(outcome.String())
	if outcome != usecase.OutcomeMatched {
		return
	}

	s.log.Debug().Int64("id", rec.ID).Str("trigger", rec.Trigger).Msg("Matched trigger")
	s.speak(ev, rec, now)
}

// greet answers a join or exit with a random stored response
func (s *BotService) greet(ctx context.Context, ev *domain.InboundEvent, mt domain.MatchType) {
	if ev.Target == "" || strings.EqualFold(ev.Sender, s.chat.Nick()) {
		return
	}

	now := s.now()
	if !s.limiter.Allow(now) {
		s.metrics.Response("rate_limited")
		return
	}

	recs, err := s.store.Search(ctx, domain.Query{}, domain.OnlyMatchType(mt))
	if err != nil {
		s.log.Error().Err(err).Str("match_type", string(mt)).Msg("Event lookup failed")
		s.metrics.Response("error")
		return
	}
	rec := s.matcher.Pick(recs)
	if rec == nil {
		s.metrics.Response(usecase.OutcomeNoHits.String())
		return
	}
	s.metrics.Response(usecase.OutcomeMatched.String())
	s.speak(ev, rec, now)
}

// speak formats rec and schedules it as the pending response
func (s *BotService) speak(ev *domain.InboundEvent, rec *domain.TriggerRecord, now time.Time) {
	text := usecase.Format(rec.Response, ev.Sender, ev.Target, s.chat.Nick())
	target := ev.Target
	useAction := rec.UseAction

	s.limiter.MarkSpoken(now)
	if s.deferred.Pending(PendingSpew) {
		s.log.Debug().Str("target", target).Msg("Replacing pending response")
	}
	delay := s.delay.Next()
	s.deferred.Schedule(PendingSpew, delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		var err error
		if useAction {
			err = s.chat.SendAction(ctx, target, text)
		} else {
			err = s.chat.Send(ctx, target, text)
		}
		if err != nil {
			s.metrics.SendFailure()
			s.log.Error().Err(err).Str("target", target).Msg("Failed to send response")
		}
	})
	s.log.Debug().Dur("delay", delay).Str("target", target).Msg("Response scheduled")
}
