package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/krisalay/caching-proxy/config"
	"github.com/krisalay/caching-proxy/server"
)

// ================= MAIN =================

func main() {
	// Defaults, then PROXY_* env, then flags.
	cfg, err := config.FromEnv(config.Default())
	if err != nil {
		slog.Error("reading environment", "err", err)
		os.Exit(2)
	}

	config.BindFlags(flag.CommandLine, &cfg)
	flag.Parse()

	cfg.Resolve(config.Explicit(flag.CommandLine))

	if err := cfg.Validate(); err != nil {
		slog.Error("bad configuration", "err", err)
		os.Exit(2)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
