package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"helix/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve blobs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run("serve", func(a *app.HelixApp) error {
			return a.Serve(ctx)
		})
	},
}
