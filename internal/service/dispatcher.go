package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/biz/usecase"
	"github.com/socky-bot/socky/internal/conf"
	"github.com/socky-bot/socky/internal/logging"
	"github.com/socky-bot/socky/internal/metrics"
)

// Dispatcher authorizes and executes admin commands
type Dispatcher struct {
	store      *usecase.StoreUsecase
	config     *usecase.ConfigUsecase
	limiter    *usecase.RateLimiter
	deferred   *DeferredTasks
	chat       repo.ChatRepo
	replies    *conf.Replies
	metrics    *metrics.Metrics
	chunkLimit int

	onQuit func()
	now    func() time.Time
	log    zerolog.Logger
}

// NewDispatcher creates a new command dispatcher
func NewDispatcher(
	store *usecase.StoreUsecase,
	config *usecase.ConfigUsecase,
	limiter *usecase.RateLimiter,
	deferred *DeferredTasks,
	chat repo.ChatRepo,
	replies *conf.Replies,
	m *metrics.Metrics,
	chunkLimit int,
) *Dispatcher {
	if replies == nil {
		replies = conf.DefaultReplies()
	}
	return &Dispatcher{
		store:      store,
		config:     config,
		limiter:    limiter,
		deferred:   deferred,
		chat:       chat,
		replies:    replies,
		metrics:    m,
		chunkLimit: chunkLimit,
		now:        time.Now,
		log:        logging.Get("dispatcher"),
	}
}

// SetQuitCallback sets the function called after a quit command
func (d *Dispatcher) SetQuitCallback(callback func()) {
	d.onQuit = callback
}

// Dispatch handles command text addressed to the bot.
// Unauthorized senders and malformed commands are dropped without a reply
// and reported as domain.ErrUnauthorized or domain.ErrMalformed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.InboundEvent, text string) error {
	account, err := d.authorize(ctx, ev)
	if err != nil {
		d.metrics.Command("unknown", "unauthorized")
		d.log.Debug().Str("sender", ev.Sender).Msg("Dropping command from non-admin")
		return err
	}

	cmd, err := usecase.ParseCommand(text, d.chat.Nick(), ev.IsAction)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			d.metrics.Command("unknown", "invalid")
			d.log.Info().Err(err).Str("account", account).Msg("Invalid command argument")
			return d.reply(ctx, ev.Target, d.replies.BadArgument)
		}
		d.metrics.Command("unknown", "malformed")
		d.log.Debug().Str("text", text).Msg("Dropping malformed command")
		return err
	}

	d.log.Info().Str("account", account).Str("action", cmd.Action.String()).Msg("Executing command")
	err = d.execute(ctx, ev, account, cmd)
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.metrics.Command(cmd.Action.String(), result)
	return err
}

// authorize resolves the sender's account and checks it against the admin set
func (d *Dispatcher) authorize(ctx context.Context, ev *domain.InboundEvent) (string, error) {
	account := ev.Account
	if !ev.HasAccount() {
		looked, err := d.chat.LookupAccount(ctx, ev.Sender)
		if err != nil {
			d.log.Warn().Err(err).Str("sender", ev.Sender).Msg("Account lookup failed")
		}
		account = looked
	}
	if account == "" || account == "*" {
		return "", domain.ErrUnauthorized
	}
	if !d.config.Runtime().IsAdmin(account) {
		return "", domain.ErrUnauthorized
	}
	return domain.NormalizeIdentity(account), nil
}

func (d *Dispatcher) execute(ctx context.Context, ev *domain.InboundEvent, account string, cmd *domain.Command) error {
	target := ev.Target

	switch cmd.Action {
	case domain.ActAdd:
		if _, err := d.store.Add(ctx, cmd.Trigger, cmd.MatchType, cmd.Argument, cmd.UseAction, account); err != nil {
			return d.replyError(ctx, target, err)
		}
		if cmd.UseAction {
			return d.replyAction(ctx, target, d.replies.Added)
		}
		return d.reply(ctx, target, d.replies.Added)

	case domain.ActSearchText:
		return d.listing(ctx, target, usecase.BuildQuery(cmd.Argument), domain.AllTriggers())

	case domain.ActSearchEvent:
		return d.listing(ctx, target, domain.Query{}, domain.ResponsesOf(cmd.MatchType))

	case domain.ActDeleteByID:
		if err := d.store.DeleteByID(ctx, cmd.ID); err != nil {
			return d.replyError(ctx, target, err)
		}
		return d.reply(ctx, target, d.replies.Removed)

	case domain.ActDeleteByTrigger:
		n, err := d.store.DeleteByTrigger(ctx, cmd.Trigger)
		if err != nil {
			return d.replyError(ctx, target, err)
		}
		d.log.Info().Str("trigger", cmd.Trigger).Int64("count", n).Msg("Purged trigger")
		return d.reply(ctx, target, d.replies.Purged)

	case domain.ActQuit:
		return d.quit(ctx, target, cmd.Argument)

	case domain.ActReload:
		if err := d.config.Reload(ctx); err != nil {
			return d.replyError(ctx, target, err)
		}
		return d.reply(ctx, target, d.replies.Reloaded)

	case domain.ActAddAdmin:
		if err := d.config.AddAdmin(ctx, cmd.Argument); err != nil {
			return d.replyError(ctx, target, err)
		}
		return d.reply(ctx, target, usecase.FormatVars(d.replies.AdminAdded, map[string]string{
			"account": domain.NormalizeIdentity(cmd.Argument),
		}))

	case domain.ActDelAdmin:
		if err := d.config.DelAdmin(ctx, cmd.Argument); err != nil {
			return d.replyError(ctx, target, err)
		}
		return d.reply(ctx, target, usecase.FormatVars(d.replies.AdminRemoved, map[string]string{
			"account": domain.NormalizeIdentity(cmd.Argument),
		}))

	case domain.ActSetInterval:
		if err := d.config.SetInterval(ctx, cmd.Duration); err != nil {
			return d.replyError(ctx, target, err)
		}
		return d.reply(ctx, target, usecase.FormatVars(d.replies.IntervalSet, secondsVar(cmd.Duration)))

	case domain.ActSetShutup:
		if err := d.config.SetQuietWindow(ctx, cmd.Duration); err != nil {
			return d.replyError(ctx, target, err)
		}
		return d.reply(ctx, target, usecase.FormatVars(d.replies.ShutupSet, secondsVar(cmd.Duration)))

	case domain.ActNickInfo:
		return d.nickInfo(ctx, target, cmd.Argument)

	case domain.ActAdminList:
		return d.reply(ctx, target, usecase.FormatVars(d.replies.AdminList, map[string]string{
			"admins": strings.Join(d.config.Runtime().Admins(), ", "),
		}))

	case domain.ActQuiet:
		d.limiter.Quiet(d.now())
		dropped := d.deferred.Cancel(PendingSpew)
		d.log.Info().
			Bool("dropped_pending", dropped).
			Time("muted_until", d.limiter.LastSpokenAt().Add(d.config.Runtime().Interval())).
			Msg("Going quiet")
		return d.reply(ctx, target, d.replies.Quiet)

	case domain.ActSpeak:
		d.limiter.Speak(d.now())
		return d.reply(ctx, target, d.replies.Speak)
	}

	d.log.Warn().Int("action", int(cmd.Action)).Msg("Unhandled command action")
	return domain.ErrMalformed
}

// listing sends search results as chunked lines, or the blank reply
func (d *Dispatcher) listing(ctx context.Context, target string, q domain.Query, scope domain.SearchScope) error {
	records, err := d.store.Search(ctx, q, scope)
	if err != nil {
		return d.replyError(ctx, target, err)
	}
	if len(records) == 0 {
		return d.reply(ctx, target, d.replies.Blank)
	}
	for _, line := range usecase.Chunk(records, d.chunkLimit) {
		if err := d.reply(ctx, target, line); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) quit(ctx context.Context, target, message string) error {
	if err := d.reply(ctx, target, d.replies.Farewell); err != nil {
		d.log.Warn().Err(err).Msg("Failed to send farewell")
	}
	err := d.chat.Quit(ctx, message)
	if err != nil {
		d.log.Error().Err(err).Msg("Transport quit failed")
	}
	d.log.Info().Str("message", message).Msg("Quit requested")
	if d.onQuit != nil {
		d.onQuit()
	}
	return err
}

func (d *Dispatcher) nickInfo(ctx context.Context, target, nick string) error {
	account, err := d.chat.LookupAccount(ctx, nick)
	if err != nil {
		return d.replyError(ctx, target, err)
	}
	if account == "" || account == "*" {
		return d.reply(ctx, target, usecase.FormatVars(d.replies.NickUnknown, map[string]string{"nick": nick}))
	}
	return d.reply(ctx, target, usecase.FormatVars(d.replies.NickInfo, map[string]string{
		"nick":    nick,
		"account": account,
	}))
}

// replyError reports a failed command to the channel. The command itself
// was handled, so only a send failure is returned.
func (d *Dispatcher) replyError(ctx context.Context, target string, cause error) error {
	var storeErr *domain.StoreError
	if errors.As(cause, &storeErr) {
		d.log.Error().Err(cause).Msg("Store operation failed")
	} else {
		d.log.Info().Err(cause).Msg("Command rejected")
	}
	return d.reply(ctx, target, d.replies.ErrorPrefix+cause.Error())
}

func (d *Dispatcher) reply(ctx context.Context, target, text string) error {
	if err := d.chat.Send(ctx, target, text); err != nil {
		d.metrics.SendFailure()
		d.log.Error().Err(err).Str("target", target).Msg("Failed to send reply")
		return err
	}
	return nil
}

func (d *Dispatcher) replyAction(ctx context.Context, target, text string) error {
	if err := d.chat.SendAction(ctx, target, text); err != nil {
		d.metrics.SendFailure()
		d.log.Error().Err(err).Str("target", target).Msg("Failed to send reply")
		return err
	}
	return nil
}

func secondsVar(d time.Duration) map[string]string {
	return map[string]string{"seconds": strconv.Itoa(int(d / time.Second))}
}
