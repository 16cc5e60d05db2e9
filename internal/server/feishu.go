package server

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/infra/feishu"
	"github.com/socky-bot/socky/internal/logging"
)

// seenSize bounds the message deduplication cache
const seenSize = 1024

// FeishuServer handles Feishu message processing
type FeishuServer struct {
	client *feishu.Client
	loop   *EventLoop

	// Feishu redelivers events it considers unacknowledged
	seen *lru.Cache[string, struct{}]
	log  zerolog.Logger
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(client *feishu.Client, loop *EventLoop) *FeishuServer {
	s := newFeishuServer(loop)
	s.client = client
	client.OnMessage(s.handleMessage)
	client.OnMember(s.handleMember)
	return s
}

func newFeishuServer(loop *EventLoop) *FeishuServer {
	seen, _ := lru.New[string, struct{}](seenSize)
	return &FeishuServer{
		loop: loop,
		seen: seen,
		log:  logging.Get("server"),
	}
}

// Start runs the event loop and blocks on the Feishu connection
func (s *FeishuServer) Start(ctx context.Context) error {
	go s.loop.Run(ctx)
	s.log.Info().Msg("Feishu server starting")
	return s.client.Start(ctx)
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.client.Stop()
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	if msg.MsgID != "" {
		if seen, _ := s.seen.ContainsOrAdd(msg.MsgID, struct{}{}); seen {
			s.log.Debug().Str("msg_id", msg.MsgID).Msg("Duplicate message ignored")
			return
		}
	}

	s.log.Debug().
		Str("chat_id", msg.ChatID).
		Str("chat_type", msg.ChatType).
		Str("type", msg.MsgType).
		Msg("Received message")

	s.loop.Push(feishuMessageEvent(msg))
}

func (s *FeishuServer) handleMember(ev *feishu.MemberEvent) {
	in, ok := feishuMemberEvent(ev)
	if !ok {
		return
	}
	s.loop.Push(in)
}

// feishuMessageEvent converts a message. The chat is always the reply target.
func feishuMessageEvent(msg *feishu.Message) *domain.InboundEvent {
	return &domain.InboundEvent{
		Kind:    domain.EventMessage,
		Sender:  msg.SenderName,
		Account: msg.SenderID,
		Target:  msg.ChatID,
		Text:    msg.Content,
	}
}

// feishuMemberEvent maps membership changes onto join and exit kinds
func feishuMemberEvent(ev *feishu.MemberEvent) (*domain.InboundEvent, bool) {
	in := &domain.InboundEvent{
		Sender:  ev.Name,
		Account: ev.OpenID,
		Target:  ev.ChatID,
	}
	switch ev.Kind {
	case feishu.MemberAdded:
		in.Kind = domain.EventJoin
	case feishu.MemberWithdrawn:
		in.Kind = domain.EventPart
	case feishu.MemberDeleted:
		in.Kind = domain.EventKick
	default:
		return nil, false
	}
	if in.Sender == "" {
		in.Sender = ev.OpenID
	}
	return in, true
}
