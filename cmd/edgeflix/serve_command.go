package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/edgeflix/internal/app"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP del engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine, err := app.New(sigCtx, cfg, app.Options{})
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Serve(sigCtx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}
