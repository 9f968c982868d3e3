package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sundarv/curryleaf/internal/config"
	"github.com/sundarv/curryleaf/internal/logging"
	"github.com/sundarv/curryleaf/internal/notifier"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("notifier", cfg.LogLevel)

	if cfg.KAFKA_ADDRESS == "" {
		logger.Error("KAFKA_ADDRESS is required for the notifier")
		os.Exit(1)
	}
	if cfg.VAPID_PUBLIC == "" || cfg.VAPID_PRIVATE == "" {
		logger.Error("VAPID keys are required for the notifier")
		os.Exit(1)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	n := notifier.New(db, logger,
		[]string{cfg.KAFKA_ADDRESS},
		cfg.VAPID_SUBJECT, cfg.VAPID_PUBLIC, cfg.VAPID_PRIVATE)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.Run(ctx); err != nil {
		logger.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier shut down")
}
