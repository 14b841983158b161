package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/delivery/http/handler"
	"github.com/user/serp-tracker/internal/delivery/http/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis workers and the ops HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.pruneQuota(ctx)
	a.dispatcher.Start()

	h := handler.NewHandler(a.dispatcher, a.quota, a.results, a.healthChecks(), a.logger)
	server := &http.Server{
		Addr:         ":" + a.cfg.ServerPort,
		Handler:      router.New(h, a.metrics, a.registry, a.logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server started", zap.String("port", a.cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		a.logger.Error("Could not start server", zap.Error(err))
		a.dispatcher.Stop(ctx)
		return err
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown", zap.Error(err))
	}
	a.dispatcher.Stop(shutdownCtx)
	a.logger.Info("Server exiting")
	return nil
}
