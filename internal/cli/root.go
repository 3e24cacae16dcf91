// Package cli implements the posd command line: the long-running service and
// one-shot maintenance commands sharing the same wiring.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"posbackend/internal/config"
	"posbackend/internal/logging"
)

type globals struct {
	cfg    config.Config
	logger *zap.Logger
}

func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "posd",
		Short: "Delivery order sync and reconciliation service",
		Long: `posd polls the delivery aggregator for new orders, keeps them in a local
store where operators close, reopen and delete them, and serves sales reports.

Run without a subcommand to start the service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			g.cfg, g.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g)
		},
	}

	root.AddCommand(
		newServeCommand(g),
		newSyncCommand(g),
		newReportCommand(g),
		newSeedCommand(g),
	)
	return root
}
