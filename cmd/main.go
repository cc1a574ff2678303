package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/currency-exchange/config"
	"github.com/angeloszaimis/currency-exchange/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize service", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Starting currency exchange service",
		slog.String("address", cfg.Server.Address),
		slog.String("cache_provider", a.cacheProvider))

	if err := a.run(ctx); err != nil {
		log.Error("Service stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Shut down gracefully")
}
