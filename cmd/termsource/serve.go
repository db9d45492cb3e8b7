// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/termsource/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups over HTTP",
	Long: `Serve starts the HTTP surface: POST /v1/lookup, GET /v1/providers,
DELETE /v1/cache/:term, GET /metrics and GET /healthz. It stops on SIGINT
or SIGTERM after in-flight requests and cache refreshes finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(loadedConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = loadedConfig.Server.Addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Config{
			Pipeline: a.pipeline,
			Cache:    a.cache,
			Profiles: loadedConfig.Providers,
			Gatherer: a.registry,
			Logger:   logger,
		})
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr from config)")
	rootCmd.AddCommand(serveCmd)
}
