package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and side-effect dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(runCtx)
		},
	}
}
