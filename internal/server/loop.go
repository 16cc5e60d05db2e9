package server

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/logging"
)

// DefaultQueueSize is the inbound event backlog before events are dropped
const DefaultQueueSize = 256

// EventHandler consumes inbound events
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *domain.InboundEvent)
}

// EventLoop serializes inbound events onto a single goroutine.
// Transport callbacks push; Run handles one event at a time.
type EventLoop struct {
	handler EventHandler
	events  chan *domain.InboundEvent
	log     zerolog.Logger
}

// NewEventLoop creates a new event loop
func NewEventLoop(handler EventHandler, size int) *EventLoop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventLoop{
		handler: handler,
		events:  make(chan *domain.InboundEvent, size),
		log:     logging.Get("loop"),
	}
}

// Push queues ev, dropping it when the backlog is full
func (l *EventLoop) Push(ev *domain.InboundEvent) bool {
	select {
	case l.events <- ev:
		return true
	default:
		l.log.Warn().Str("kind", string(ev.Kind)).Str("target", ev.Target).Msg("Event queue full, dropping event")
		return false
	}
}

// Run handles events until ctx is cancelled
func (l *EventLoop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.events:
			l.handle(ctx, ev)
		}
	}
}

func (l *EventLoop) handle(ctx context.Context, ev *domain.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("kind", string(ev.Kind)).Msg("Event handler panicked")
		}
	}()
	l.handler.HandleEvent(ctx, ev)
}
