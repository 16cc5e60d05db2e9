package data

import (
	"context"

	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/infra/irc"
)

// ircRepo implements repo.ChatRepo over an IRC connection
type ircRepo struct {
	client *irc.Client
}

// NewIRCRepo creates a new IRC chat repository
func NewIRCRepo(client *irc.Client) repo.ChatRepo {
	return &ircRepo{client: client}
}

func (r *ircRepo) Send(ctx context.Context, target, text string) error {
	return r.client.SendText(target, text)
}

func (r *ircRepo) SendAction(ctx context.Context, target, text string) error {
	return r.client.SendAction(target, text)
}

func (r *ircRepo) Quit(ctx context.Context, message string) error {
	r.client.Quit(message)
	return nil
}

func (r *ircRepo) Nick() string {
	return r.client.Nick()
}

func (r *ircRepo) LookupAccount(ctx context.Context, nick string) (string, error) {
	return r.client.Account(nick), nil
}
