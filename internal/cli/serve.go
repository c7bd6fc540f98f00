// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatwidget/internal/devserver"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCommand() *cobra.Command {
	var (
		addr     string
		greeting string
		rate     float64
		burst    int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local stand-in for the chat endpoint",
		Long: `Run a development server implementing POST /chat.

It greets on an empty query, echoes everything else and issues a new session
id to clients that do not send one. Point the widget at it with
--endpoint http://127.0.0.1:8787/chat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.consoleLogging()

			cfg := devserver.Config{
				Addr:          a.cfg.Server.Addr,
				Greeting:      a.cfg.Server.Greeting,
				RatePerSecond: a.cfg.Server.RatePerSecond,
				Burst:         a.cfg.Server.Burst,
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("greeting") {
				cfg.Greeting = greeting
			}
			if flags.Changed("rate") {
				cfg.RatePerSecond = rate
			}
			if flags.Changed("burst") {
				cfg.Burst = burst
			}
			return a.serve(cmd.Context(), devserver.New(cfg))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", devserver.DefaultAddr, "listen address")
	cmd.Flags().StringVar(&greeting, "greeting", devserver.DefaultGreeting, "reply to the empty greeting query")
	cmd.Flags().Float64Var(&rate, "rate", 5, "requests per second per client (0 disables)")
	cmd.Flags().IntVar(&burst, "burst", 10, "rate limiter burst")
	return cmd
}

// serve runs srv until SIGINT/SIGTERM or ctx is done, then shuts down.
func (a *app) serve(ctx context.Context, srv *devserver.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Fprintln(a.errOut, SuccessStyle.Render("serving"), fmt.Sprintf("http://%s/chat", srv.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
		return err
	}
	return <-errCh
}
