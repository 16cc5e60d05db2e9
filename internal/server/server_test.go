package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/infra/feishu"
	"github.com/socky-bot/socky/internal/infra/irc"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*domain.InboundEvent
	panics bool
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev *domain.InboundEvent) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	if h.panics && ev.Text == "boom" {
		panic("boom")
	}
}

func (h *recordingHandler) wait(t *testing.T, n int) []*domain.InboundEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.Lock()
		got := append([]*domain.InboundEvent(nil), h.events...)
		h.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventLoop_HandlesInOrder(t *testing.T) {
	h := &recordingHandler{}
	loop := NewEventLoop(h, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	for _, text := range []string{"one", "two", "three"} {
		if !loop.Push(&domain.InboundEvent{Kind: domain.EventMessage, Text: text}) {
			t.Fatalf("Push(%q) dropped", text)
		}
	}

	got := h.wait(t, 3)
	if len(got) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(got))
	}
	for i, want := range []string{"one", "two", "three"} {
		if got[i].Text != want {
			t.Errorf("event %d = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestEventLoop_DropsWhenFull(t *testing.T) {
	loop := NewEventLoop(&recordingHandler{}, 1)

	if !loop.Push(&domain.InboundEvent{Kind: domain.EventJoin}) {
		t.Fatal("Expected first push to be queued")
	}
	if loop.Push(&domain.InboundEvent{Kind: domain.EventJoin}) {
		t.Error("Expected second push to be dropped")
	}
}

func TestEventLoop_SurvivesHandlerPanic(t *testing.T) {
	h := &recordingHandler{panics: true}
	loop := NewEventLoop(h, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.Push(&domain.InboundEvent{Kind: domain.EventMessage, Text: "boom"})
	loop.Push(&domain.InboundEvent{Kind: domain.EventMessage, Text: "after"})

	got := h.wait(t, 2)
	if len(got) != 2 || got[1].Text != "after" {
		t.Errorf("Expected loop to continue after panic, got %d events", len(got))
	}
}

func TestIRCEvent(t *testing.T) {
	tests := []struct {
		name   string
		in     irc.Event
		kind   domain.EventKind
		target string
		ok     bool
	}{
		{"channel message", irc.Event{Kind: irc.KindMessage, Nick: "kitty", Channel: "#sporks", Text: "hi"}, domain.EventMessage, "#sporks", true},
		{"private message", irc.Event{Kind: irc.KindMessage, Nick: "kitty", Text: "hi"}, domain.EventMessage, "kitty", true},
		{"join", irc.Event{Kind: irc.KindJoin, Nick: "kitty", Channel: "#sporks"}, domain.EventJoin, "#sporks", true},
		{"part", irc.Event{Kind: irc.KindPart, Nick: "kitty", Channel: "#sporks"}, domain.EventPart, "#sporks", true},
		{"quit from unseen nick", irc.Event{Kind: irc.KindQuit, Nick: "kitty"}, domain.EventQuit, "", true},
		{"quit from shared channel", irc.Event{Kind: irc.KindQuit, Nick: "kitty", Channel: "#sporks"}, domain.EventQuit, "#sporks", true},
		{"kick", irc.Event{Kind: irc.KindKick, Nick: "kitty", Channel: "#sporks"}, domain.EventKick, "#sporks", true},
		{"unknown", irc.Event{Kind: "topic"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ircEvent(&tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Kind != tt.kind || got.Target != tt.target || got.Sender != tt.in.Nick {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestIRCEvent_CarriesAccountAndAction(t *testing.T) {
	got, _ := ircEvent(&irc.Event{Kind: irc.KindMessage, Nick: "kitty", Account: "Kitty", Channel: "#sporks", Text: "waves", Action: true})
	if got.Account != "Kitty" || !got.IsAction || got.Text != "waves" {
		t.Errorf("got %+v", got)
	}
}

func TestFeishuServer_Dedup(t *testing.T) {
	h := &recordingHandler{}
	loop := NewEventLoop(h, 8)
	s := newFeishuServer(loop)

	msg := &feishu.Message{MsgID: "om_1", ChatID: "oc_1", SenderID: "ou_1", SenderName: "Kitty", Content: "hello"}
	s.handleMessage(msg)
	s.handleMessage(msg)
	s.handleMessage(&feishu.Message{MsgID: "om_2", ChatID: "oc_1", Content: "again"})

	if n := len(loop.events); n != 2 {
		t.Fatalf("Expected 2 queued events, got %d", n)
	}
	ev := <-loop.events
	if ev.Kind != domain.EventMessage || ev.Sender != "Kitty" || ev.Account != "ou_1" || ev.Target != "oc_1" || ev.Text != "hello" {
		t.Errorf("got %+v", ev)
	}
}

func TestFeishuMemberEvent(t *testing.T) {
	tests := []struct {
		kind feishu.MemberEventKind
		want domain.EventKind
	}{
		{feishu.MemberAdded, domain.EventJoin},
		{feishu.MemberWithdrawn, domain.EventPart},
		{feishu.MemberDeleted, domain.EventKick},
	}
	for _, tt := range tests {
		got, ok := feishuMemberEvent(&feishu.MemberEvent{Kind: tt.kind, ChatID: "oc_1", OpenID: "ou_1", Name: "Kitty"})
		if !ok || got.Kind != tt.want || got.Target != "oc_1" || got.Sender != "Kitty" {
			t.Errorf("%s: got %+v, ok=%v", tt.kind, got, ok)
		}
	}

	got, _ := feishuMemberEvent(&feishu.MemberEvent{Kind: feishu.MemberAdded, ChatID: "oc_1", OpenID: "ou_2"})
	if got.Sender != "ou_2" {
		t.Errorf("Expected open_id fallback for sender, got %q", got.Sender)
	}
	if _, ok := feishuMemberEvent(&feishu.MemberEvent{Kind: "renamed"}); ok {
		t.Error("Expected unknown kind to be ignored")
	}
}
