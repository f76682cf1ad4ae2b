package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storekit/storefront-backend/internal/bootstrap"
	"github.com/storekit/storefront-backend/internal/config"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/service"
	"github.com/storekit/storefront-backend/internal/tools/smoke"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "storefrontd",
		Short:         "Storefront backend: accounts, sessions and token lifecycle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	cmd.AddCommand(newServeCommand(&configPath))
	cmd.AddCommand(newSweepCommand(&configPath))
	cmd.AddCommand(smoke.NewCommand())
	return cmd
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, *configPath)
			if err != nil {
				return err
			}
			logger, logProvider, err := observability.NewLogger(ctx, cfg)
			if err != nil {
				return err
			}
			application, err := bootstrap.InitializeApp(ctx, cfg, logger, logProvider)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}

// sweep deletes expired refresh-token rows once and exits. Intended for
// cron in deployments that prefer out-of-process cleanup.
func newSweepCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired refresh tokens and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, *configPath)
			if err != nil {
				return err
			}
			logger, _, err := observability.NewLogger(ctx, cfg)
			if err != nil {
				return err
			}
			db, err := bootstrap.ProvideDB(cfg)
			if err != nil {
				return err
			}
			sweeper := service.NewSweeper(repository.NewRefreshTokenRepository(db), cfg.SweepInterval, logger)
			removed, err := sweeper.SweepOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired refresh tokens\n", removed)
			return nil
		},
	}
}
