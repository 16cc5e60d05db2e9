package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/socky-bot/socky/internal/biz"
	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/biz/usecase"
	"github.com/socky-bot/socky/internal/data"
	"github.com/socky-bot/socky/internal/infra/feishu"
	"github.com/socky-bot/socky/internal/infra/irc"
	"github.com/socky-bot/socky/internal/mcp"
	"github.com/socky-bot/socky/internal/metrics"
	"github.com/socky-bot/socky/internal/server"
	"github.com/socky-bot/socky/internal/service"
)

var backfillAuthor string

// quitGrace bounds how long a quit command waits for the transport to close
// on its own before the bot is torn down
const quitGrace = 5 * time.Second

var ircCmd = &cobra.Command{
	Use:   "irc",
	Short: "Run the bot on IRC",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateIRC(); err != nil {
			return err
		}

		client := irc.NewClient(irc.Config{
			Server:   cfg.IRC.Server,
			Port:     cfg.IRC.Port,
			TLS:      cfg.IRC.TLS,
			Nick:     cfg.IRC.Nick,
			Channels: cfg.IRC.Channels,
			SASLUser: cfg.IRC.SASLUser,
			SASLPass: cfg.IRC.SASLPass,
		})
		return runBot(data.NewIRCRepo(client), func(ctx context.Context, loop *server.EventLoop) error {
			return server.NewIRCServer(client, loop).Start(ctx)
		})
	},
}

var feishuCmd = &cobra.Command{
	Use:   "feishu",
	Short: "Run the bot on Feishu/Lark",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateFeishu(); err != nil {
			return err
		}

		client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		return runBot(data.NewFeishuRepo(client), func(ctx context.Context, loop *server.EventLoop) error {
			return server.NewFeishuServer(client, loop).Start(ctx)
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the trigger store over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := data.NewRepositories(cfg.Store.DBPath, cfg.Store.SearchLimit, nil)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer repos.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		author := "mcp"
		if len(cfg.Bot.Admins) > 0 {
			author = cfg.Bot.Admins[0]
		}
		return mcp.NewStoreServer(usecase.NewStoreUsecase(repos.Index), author, version).Run(ctx)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Assign an author and timestamp to legacy triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := data.NewRepositories(cfg.Store.DBPath, cfg.Store.SearchLimit, nil)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer repos.Close()

		n, err := usecase.NewStoreUsecase(repos.Index).Backfill(cmd.Context(), backfillAuthor)
		if err != nil {
			return err
		}
		fmt.Printf("Backfilled %d triggers\n", n)
		return nil
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillAuthor, "author", "unknown", "author recorded on legacy triggers")
}

// runBot wires the store, bot and transport, then blocks until shutdown
func runBot(transport repo.ChatRepo, start func(ctx context.Context, loop *server.EventLoop) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chat := data.NewThrottledChat(transport, cfg.Bot.SendRate, cfg.Bot.SendBurst)
	repos, err := data.NewRepositories(cfg.Store.DBPath, cfg.Store.SearchLimit, chat)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()
	log.Info().Str("path", cfg.Store.DBPath).Msg("Trigger store opened")

	runtime := domain.NewRuntimeConfig(cfg.Bot.Admins)
	runtime.SetInterval(cfg.Bot.Interval)
	runtime.SetQuietWindow(cfg.Bot.QuietWindow)
	uc := biz.NewUsecases(repos.Index, repos.Settings, runtime, cfg.Bot.ReplyDelayMin, cfg.Bot.ReplyDelayMax)
	if err := uc.Config.Load(ctx); err != nil {
		return fmt.Errorf("failed to load runtime config: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	deferred := service.NewDeferredTasks()
	defer deferred.Stop()

	dispatcher := service.NewDispatcher(uc.Store, uc.Config, uc.Limiter, deferred, repos.Chat, cfg.Replies, m, cfg.Bot.ChunkLimit)
	dispatcher.SetQuitCallback(func() { time.AfterFunc(quitGrace, cancel) })

	bot := service.NewBotService(
		dispatcher,
		uc.Store,
		uc.Matcher,
		uc.Limiter,
		uc.Delay,
		deferred,
		repos.Chat,
		m,
	)
	loop := server.NewEventLoop(bot, server.DefaultQueueSize)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info().Str("version", version).Msg("Starting socky")
	return start(ctx, loop)
}
