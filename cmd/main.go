package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/app"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := app.Initialize(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.Services.Auth.BootstrapDefaultAdmin(ctx); err != nil {
		a.Logger.Error("Failed to bootstrap default administrator", zap.Error(err))
		return
	}

	if err := a.Run(ctx); err != nil {
		a.Logger.Error("Server stopped with error", zap.Error(err))
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}
