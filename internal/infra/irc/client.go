package irc

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/lrstanley/girc"
	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/logging"
)

// Config holds connection settings for one IRC network
type Config struct {
	Server   string
	Port     int
	TLS      bool
	Nick     string
	User     string
	Name     string
	Channels []string
	SASLUser string
	SASLPass string
}

// Event kinds delivered to the handler
const (
	KindMessage = "message"
	KindJoin    = "join"
	KindPart    = "part"
	KindQuit    = "quit"
	KindKick    = "kick"
)

// Event is one inbound IRC event
type Event struct {
	Kind    string
	Nick    string // originator, or the kicked user for kicks
	Account string // services account, empty when unknown
	Channel string // empty for private messages and quits from unseen nicks
	Text    string
	Action  bool // CTCP ACTION
}

// EventHandler is the callback for inbound events
type EventHandler func(ev *Event)

// Client wraps a girc connection
type Client struct {
	cfg     Config
	gc      *girc.Client
	onEvent EventHandler
	roster  *roster
	log     zerolog.Logger

	// set once a QUIT has been queued; the server may drop us before girc does
	quitting atomic.Bool
}

// NewClient creates a new IRC client. Handlers are registered immediately;
// nothing connects until Start.
func NewClient(cfg Config) *Client {
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Nick
	}

	gcfg := girc.Config{
		Server: cfg.Server,
		Port:   cfg.Port,
		Nick:   cfg.Nick,
		User:   cfg.User,
		Name:   cfg.Name,
		SSL:    cfg.TLS,
	}
	if cfg.SASLUser != "" {
		gcfg.SASL = &girc.SASLPlain{User: cfg.SASLUser, Pass: cfg.SASLPass}
	}

	c := &Client{
		cfg: cfg,
		gc:     girc.New(gcfg),
		roster: newRoster(),
		log:    logging.Get("irc"),
	}
	c.registerHandlers()
	return c
}

// OnEvent sets the event handler
func (c *Client) OnEvent(handler EventHandler) {
	c.onEvent = handler
}

// Start connects and blocks until the connection ends or ctx is cancelled
func (c *Client) Start(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.gc.Close()
		case <-done:
		}
	}()

	c.log.Info().Str("server", c.cfg.Server).Int("port", c.cfg.Port).Msg("Connecting")
	err := c.gc.Connect()
	if ctx.Err() != nil || c.quitting.Load() {
		return nil
	}
	return err
}

// Stop closes the connection without a quit message
func (c *Client) Stop() {
	c.gc.Close()
}

// Nick returns the current nick
func (c *Client) Nick() string {
	if n := c.gc.GetNick(); n != "" {
		return n
	}
	return c.cfg.Nick
}

// SendText sends a PRIVMSG
func (c *Client) SendText(target, text string) error {
	if !c.gc.IsConnected() {
		return fmt.Errorf("not connected")
	}
	c.gc.Cmd.Message(target, text)
	return nil
}

// SendAction sends a CTCP ACTION
func (c *Client) SendAction(target, text string) error {
	if !c.gc.IsConnected() {
		return fmt.Errorf("not connected")
	}
	c.gc.Cmd.Action(target, text)
	return nil
}

// Quit leaves the network with a reason. Queued messages are flushed
// before the QUIT and Start returns once girc has closed the connection.
func (c *Client) Quit(reason string) {
	c.quitting.Store(true)
	c.gc.Quit(reason)
}

// Account returns the services account girc tracks for nick
func (c *Client) Account(nick string) string {
	user := c.gc.LookupUser(nick)
	if user == nil {
		return ""
	}
	return user.Extras.Account
}

func (c *Client) registerHandlers() {
	c.gc.Handlers.Add(girc.CONNECTED, func(gc *girc.Client, e girc.Event) {
		c.log.Info().Str("nick", gc.GetNick()).Strs("channels", c.cfg.Channels).Msg("Connected")
		if len(c.cfg.Channels) > 0 {
			gc.Cmd.Join(c.cfg.Channels...)
		}
	})

	c.gc.Handlers.Add(girc.PRIVMSG, func(gc *girc.Client, e girc.Event) {
		if e.Source == nil || len(e.Params) == 0 || strings.EqualFold(e.Source.Name, gc.GetNick()) {
			return
		}
		ev := &Event{
			Kind:    KindMessage,
			Nick:    e.Source.Name,
			Account: c.eventAccount(e, e.Source.Name),
			Text:    e.Last(),
		}
		if e.IsFromChannel() {
			ev.Channel = e.Params[0]
		}
		if e.IsAction() {
			ev.Action = true
			ev.Text = e.StripAction()
		}
		c.emit(ev)
	})

	c.gc.Handlers.Add(girc.JOIN, func(gc *girc.Client, e girc.Event) {
		if e.Source == nil || len(e.Params) == 0 {
			return
		}
		c.roster.add(e.Source.Name, e.Params[0])
		c.emit(&Event{
			Kind:    KindJoin,
			Nick:    e.Source.Name,
			Account: c.eventAccount(e, e.Source.Name),
			Channel: e.Params[0],
		})
	})

	c.gc.Handlers.Add(girc.PART, func(gc *girc.Client, e girc.Event) {
		if e.Source == nil || len(e.Params) == 0 {
			return
		}
		c.leave(gc, e.Source.Name, e.Params[0])
		c.emit(&Event{
			Kind:    KindPart,
			Nick:    e.Source.Name,
			Channel: e.Params[0],
		})
	})

	// QUIT names no channel; report it once per channel we shared
	c.gc.Handlers.Add(girc.QUIT, func(gc *girc.Client, e girc.Event) {
		if e.Source == nil {
			return
		}
		chans := c.roster.quit(e.Source.Name)
		if len(chans) == 0 {
			c.emit(&Event{Kind: KindQuit, Nick: e.Source.Name})
			return
		}
		for _, ch := range chans {
			c.emit(&Event{Kind: KindQuit, Nick: e.Source.Name, Channel: ch})
		}
	})

	c.gc.Handlers.Add(girc.NICK, func(gc *girc.Client, e girc.Event) {
		if e.Source == nil || len(e.Params) == 0 {
			return
		}
		c.roster.rename(e.Source.Name, e.Last())
	})

	c.gc.Handlers.Add(girc.RPL_NAMREPLY, func(gc *girc.Client, e girc.Event) {
		if len(e.Params) < 3 {
			return
		}
		for _, entry := range strings.Fields(e.Last()) {
			if nick := namesEntry(entry); nick != "" {
				c.roster.add(nick, e.Params[2])
			}
		}
	})

	c.gc.Handlers.Add(girc.DISCONNECTED, func(gc *girc.Client, e girc.Event) {
		c.roster.reset()
	})

	c.gc.Handlers.Add(girc.KICK, func(gc *girc.Client, e girc.Event) {
		if len(e.Params) < 2 {
			return
		}
		c.leave(gc, e.Params[1], e.Params[0])
		c.emit(&Event{
			Kind:    KindKick,
			Nick:    e.Params[1],
			Channel: e.Params[0],
		})
	})
}

// leave drops nick from channel, or the whole channel when nick is us
func (c *Client) leave(gc *girc.Client, nick, channel string) {
	if strings.EqualFold(nick, gc.GetNick()) {
		c.roster.forgetChannel(channel)
		return
	}
	c.roster.remove(nick, channel)
}

// eventAccount prefers the account-tag on the line and falls back to tracked state
func (c *Client) eventAccount(e girc.Event, nick string) string {
	if e.Tags != nil {
		if acct, ok := e.Tags.Get("account"); ok && acct != "" {
			return acct
		}
	}
	return c.Account(nick)
}

func (c *Client) emit(ev *Event) {
	c.log.Debug().Str("kind", ev.Kind).Str("nick", ev.Nick).Str("channel", ev.Channel).Msg("Event")
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}
