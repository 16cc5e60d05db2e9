package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/socky-bot/socky/internal/conf"
	"github.com/socky-bot/socky/internal/logging"
)

var version = "dev"

var (
	cfg *conf.Config

	rootCmd = &cobra.Command{
		Use:   "socky",
		Short: "A trigger-response chat bot",
		Long: `socky watches chat channels and answers messages that match stored
triggers. Admins teach it new triggers with bracketed commands.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug().Msg("No .env file found, using environment variables")
			}
			cfg = conf.LoadFromEnv()
			logging.Setup(cfg.Debug)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
			return cfg.Validate()
		},
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(ircCmd, feishuCmd, mcpCmd, backfillCmd)
}
