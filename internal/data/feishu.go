package data

import (
	"context"

	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/infra/feishu"
)

// feishuRepo implements repo.ChatRepo over the Feishu bot API
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu chat repository
func NewFeishuRepo(client *feishu.Client) repo.ChatRepo {
	return &feishuRepo{client: client}
}

func (r *feishuRepo) Send(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

// SendAction renders the emote the way IRC clients display one
func (r *feishuRepo) SendAction(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, "* "+r.Nick()+" "+text)
}

// Quit closes the event stream. Feishu has no parting message.
func (r *feishuRepo) Quit(ctx context.Context, message string) error {
	r.client.Stop()
	return nil
}

func (r *feishuRepo) Nick() string {
	return r.client.BotName()
}

// LookupAccount maps a display name to the open_id it was last seen with
func (r *feishuRepo) LookupAccount(ctx context.Context, name string) (string, error) {
	id, _ := r.client.LookupOpenID(name)
	return id, nil
}
