package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenup/seenup-server/internal/app"
	"github.com/seenup/seenup-server/internal/config"
	"github.com/seenup/seenup-server/internal/log"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "seenup-server",
		Short:         "Seenup chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting seenup server")
			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete channels with no activity past the inactivity threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			deleted, err := application.SweepInactiveChannels(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Int("deleted", deleted).Msg("cleanup finished")
			return nil
		},
	}

	root.AddCommand(serve, cleanup)
	root.RunE = serve.RunE

	ctx := context.Background()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, *zerolog.Logger, error) {
	bootLogger := log.New("info")
	cfg, cfgPath, err := config.Load(bootLogger, path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}

	logger := log.New(cfg.LogLevel)
	logger.Debug().Str("config", cfgPath).Msg("configuration loaded")
	return cfg, logger, nil
}
