package server

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/infra/irc"
	"github.com/socky-bot/socky/internal/logging"
)

// IRCServer feeds IRC events into the event loop
type IRCServer struct {
	client *irc.Client
	loop   *EventLoop
	log    zerolog.Logger
}

// NewIRCServer creates a new IRC server
func NewIRCServer(client *irc.Client, loop *EventLoop) *IRCServer {
	s := &IRCServer{
		client: client,
		loop:   loop,
		log:    logging.Get("server"),
	}
	client.OnEvent(s.handleEvent)
	return s
}

// Start runs the event loop and blocks on the IRC connection
func (s *IRCServer) Start(ctx context.Context) error {
	go s.loop.Run(ctx)
	s.log.Info().Msg("IRC server starting")
	return s.client.Start(ctx)
}

// Stop closes the IRC connection
func (s *IRCServer) Stop() {
	s.client.Stop()
}

func (s *IRCServer) handleEvent(ev *irc.Event) {
	in, ok := ircEvent(ev)
	if !ok {
		s.log.Debug().Str("kind", ev.Kind).Msg("Ignoring IRC event")
		return
	}
	s.loop.Push(in)
}

// ircEvent converts an IRC event. Private messages reply to the sender.
func ircEvent(ev *irc.Event) (*domain.InboundEvent, bool) {
	in := &domain.InboundEvent{
		Sender:   ev.Nick,
		Account:  ev.Account,
		Target:   ev.Channel,
		Text:     ev.Text,
		IsAction: ev.Action,
	}

	switch ev.Kind {
	case irc.KindMessage:
		in.Kind = domain.EventMessage
		if in.Target == "" {
			in.Target = ev.Nick
		}
	case irc.KindJoin:
		in.Kind = domain.EventJoin
	case irc.KindPart:
		in.Kind = domain.EventPart
	case irc.KindQuit:
		in.Kind = domain.EventQuit
	case irc.KindKick:
		in.Kind = domain.EventKick
	default:
		return nil, false
	}
	return in, true
}
