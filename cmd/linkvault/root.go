package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkvault/internal/config"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "linkvault",
		Short: "LinkVault - personal bookmark dashboard",
		Long: `LinkVault keeps a signed-in user's bookmarks in sync with the backend
and serves them over a small JSON API. Without a subcommand it runs the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newIssueTokenCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and builds the logger shared by every subcommand.
func (o *rootOptions) load() (*config.Config, logger.Logger) {
	cfg := config.Load(o.envFile)
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog)
}
