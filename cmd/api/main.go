package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/objectd/internal/app"
	"github.com/abduss/objectd/internal/config"
	"github.com/abduss/objectd/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	zl, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		zl.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("bootstrap", zap.Error(err))
	}
	defer a.Close()

	if cfg.Auth.RootToken == "" && cfg.Auth.RootTokenHash == "" {
		zl.Warn("no root token configured; administrative routes will reject every request")
	}

	go a.RunSweeper(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      a.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("objectd listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("domain", cfg.Storage.DomainSuffix),
			zap.String("data_path", cfg.Storage.DataPath),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
