// Package main provides the backtest HTTP service:
// - POST /runs starts an asynchronous backtest, GET /runs[/{id}] reports it
// - /ws/progress streams run progress over WebSocket
// - /metrics exposes Prometheus metrics, /healthz liveness
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ipo-window-lab/internal/config"
	"ipo-window-lab/internal/observability"
	"ipo-window-lab/internal/pipeline"
)

func main() {
	var (
		configPath string
		addr       string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve backtest runs over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			observability.ConfigureLogging(cfg.Log.Level, cfg.Log.Format, verbose, nil)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Errorf("Server error: %v", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.WithField("component", "server")

	stack, err := pipeline.OpenStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	metrics := observability.NewMetrics("ipo_backtest", prometheus.DefaultRegisterer)
	srv := NewServer(ctx, cfg, stack, metrics, observability.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown incomplete")
	}

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Graceful shutdown timed out after 30s")
	}

	logger.Info("Shutdown complete")
	return nil
}
