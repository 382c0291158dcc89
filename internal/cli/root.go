package cli

import (
	"os"

	"github.com/soyeahso/botkit/internal/config"
	"github.com/soyeahso/botkit/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths  config.Paths
	cfg    config.Config
	cfgErr error
	log    *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "botkit",
		Short: "botkit talks to chat bots from many providers",
		Long:  "botkit lists the bots of the configured providers and runs conversations with them, replicating chats to SQLite and optionally to AMQP.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// A broken config must not block `config set` from fixing it.
			cfg, cfgErr = config.Load(paths.Config)
			if cfgErr != nil {
				cfg = config.Defaults()
			}

			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			if cfg.Logging.JSON {
				log = logging.New(os.Stderr, level)
			} else {
				log = logging.New(nil, level)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.botkit/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newBotsCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newChatsCmd())

	return cmd
}

// loadedConfig returns the config read before the command ran.
func loadedConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	return &cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
