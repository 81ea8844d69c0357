// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-digest/internal/api"
	"github.com/pdiddy/paper-digest/internal/schedule"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the daily digest on schedule",
	Long: `Serve starts the HTTP API and, when schedule.enabled is set, runs the
digest every day at schedule.at (UTC). Interrupt to stop; runs in flight
stop launching new papers and keep the results already obtained.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default server.addr, :8080)")
	serveCmd.Flags().Bool("schedule", false, "enable the daily run regardless of schedule.enabled")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	var daily *schedule.Daily
	if force, _ := cmd.Flags().GetBool("schedule"); force || a.cfg.Schedule.Enabled {
		if daily, err = schedule.New(a.cfg.Schedule.At, a.logger); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(ctx, a.orch, a.store, a.jobs, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if daily != nil {
		g.Go(func() error {
			err := daily.Run(gctx, func(ctx context.Context) {
				if _, err := a.orch.RunDigest(ctx); err != nil {
					a.logger.Error("scheduled run failed", "err", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
