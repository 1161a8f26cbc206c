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

	"github.com/david/contract-broker/internal/api"
	"github.com/david/contract-broker/internal/app"
	"github.com/david/contract-broker/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	defer a.Close()

	runner, err := a.Runner()
	if err != nil {
		logger.WithError(err).Fatal("scheduler setup failed")
	}
	runner.Start(ctx)
	defer runner.Stop()

	srv := api.NewServer(api.Deps{
		Store:     a.Store,
		Ingester:  a.Coordinator,
		Sources:   a.Registry,
		Reminders: a.Reminders,
		Notifier:  a.Dispatcher,
		Reporter:  a.Reporter,
		Auth:      a.Auth,
		Logger:    logger,
	}, cfg.Server.CORSOrigins)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.WithField("addr", addr).Info("server starting")
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}
