package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/gwlsn/mediaconv/internal/api"
	"github.com/gwlsn/mediaconv/internal/browse"
	"github.com/gwlsn/mediaconv/internal/events"
	"github.com/gwlsn/mediaconv/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for the desktop front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
			}
			if !ok {
				return fmt.Errorf("another mediaconv server is already using %s", cfg.DataDir)
			}
			defer lock.Unlock()

			jobStore, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer jobStore.Close()

			if n, err := jobStore.MarkInterrupted("interrupted by server restart"); err != nil {
				logger.Warn("Failed to mark interrupted jobs", "error", err)
			} else if n > 0 {
				logger.Info("Marked interrupted jobs as failed", "count", n)
			}

			hub := events.NewHub()
			ch := events.NewChannel()
			ch.Attach(hub)
			defer ch.Detach()

			ctrl, err := ctx.newController(ch, jobStore)
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handler := api.NewHandler(ctrl, hub, jobStore, cfg, ctx.configPath)
			handler.SetBrowser(browse.NewBrowser(ctx.prober(), cfg.ResolvedBrowseRoot()))
			server := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           api.NewServerHandler(handler, cfg.CORSOrigins),
				ReadHeaderTimeout: 10 * time.Second,
				// Event streams end when a shutdown signal arrives.
				BaseContext: func(net.Listener) context.Context { return sigCtx },
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  mediaconv %s\n", version)
			fmt.Fprintf(out, "  Config:       %s\n", ctx.configPath)
			fmt.Fprintf(out, "  Database:     %s\n", jobStore.Path())
			fmt.Fprintf(out, "  Browse root:  %s\n", cfg.ResolvedBrowseRoot())
			fmt.Fprintf(out, "  Listening on: http://%s\n", cfg.ListenAddr)
			fmt.Fprintln(out)

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- server.ListenAndServe()
			}()
			logger.Info("mediaconv started", "version", version, "addr", cfg.ListenAddr)

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			case <-sigCtx.Done():
			}

			logger.Info("Shutdown signal received")
			if n := ctrl.Close(); n > 0 {
				logger.Info("Cancelled running jobs", "count", n)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown failed", "error", err)
				server.Close()
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")
	return cmd
}
