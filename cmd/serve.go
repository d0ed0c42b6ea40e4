package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/httpapi"
	"github.com/spigell/fruit-matcher/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default is http.addr)")

	bindFlags(serveCmd.Flags(), map[string]string{"http.addr": "addr"})
}

func serve(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := setup(ctx)
	defer e.Close()

	if e.config.HTTP == nil {
		e.logger.Fatal("http config is required")
	}
	cfg := e.config.HTTP

	metrics.Register(prometheus.DefaultRegisterer)

	handler := httpapi.NewRouter(
		httpapi.NewServer(e.db, e.matchmaker(ctx), e.logger),
		httpapi.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			Gatherer:       prometheus.DefaultGatherer,
		},
		e.logger,
	)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("starting HTTP server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			e.logger.Error("HTTP server error", zap.Error(err))
			return
		}
	case <-ctx.Done():
		e.logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("error during shutdown", zap.Error(err))
	}

	e.logger.Info("server stopped gracefully")
}
