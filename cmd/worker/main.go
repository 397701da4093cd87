package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/id"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/otel"
	"github.com/LopeviaKochis/ai-virtual-assistant/core/config"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/app"
)

const shutdownTimeout = 30 * time.Second

func main() {
	fmt.Print(banner + "\n")
	if err := run(); err != nil {
		slog.Error("assistant worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Workers run on a context that signals do not cancel: an in-flight
	// message finishes its reply before Stop returns.
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	logger.Setup(cfg)

	if err := app.ResolveSecrets(ctx, &cfg); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}
	// Offset from the server so both processes mint distinct IDs.
	if err := id.Init(cfg.NodeID + 1); err != nil {
		return err
	}

	redisClient, err := app.ConnectRedis(ctx, cfg.Pipeline.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	application, err := app.New(ctx, cfg, redisClient, nil)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer application.Close()

	p, err := newPool(ctx, cfg, application, consumerName(cfg.Pipeline.RedisConsumer))
	if err != nil {
		return err
	}
	p.start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	slog.InfoContext(ctx, "shutting down", "signal", (<-sig).String())

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if !p.stop(shutdownCtx) {
		slog.WarnContext(ctx, "shutdown timed out with messages in flight")
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown", "error", err)
	}
	slog.InfoContext(ctx, "assistant worker stopped")
	return nil
}

// consumerName keeps a configured name, or derives one unique per process.
func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

const banner = `
   _   ___ ___ ___ ___ _____ _   _  _ _____
  /_\ / __/ __|_ _/ __|_   _/_\ | \| |_   _|
 / _ \\__ \__ \| |\__ \ | |/ _ \| .' | | |
/_/ \_\___/___/___|___/ |_/_/ \_\_|\_| |_|   worker
`
