package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/id"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/otel"
	"github.com/LopeviaKochis/ai-virtual-assistant/core/config"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/app"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler/webhook"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/middleware"
	httprouter "github.com/LopeviaKochis/ai-virtual-assistant/internal/http/router"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/signature"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Print(banner + "\n")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("assistant server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The production log handler exports through the OTel logger provider.
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	logger.Setup(cfg)
	slog.InfoContext(ctx, "assistant server starting",
		"env", cfg.Env,
		"otel_enabled", telemetry != nil)

	if err := app.ResolveSecrets(ctx, &cfg); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}
	if err := id.Init(cfg.NodeID); err != nil {
		return err
	}

	redisClient, err := app.ConnectRedis(ctx, cfg.Pipeline.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, 0, slog.Default())
	defer producer.Close()

	application, err := app.New(ctx, cfg, redisClient, producer)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer application.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newEngine(cfg, application),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "port", cfg.Port, "stream", cfg.Pipeline.RedisStream)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "draining http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown", "error", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown", "error", err)
	}
	slog.InfoContext(shutdownCtx, "assistant server stopped")
	return nil
}

// newEngine installs tracing first so recovery and access logs carry the span.
func newEngine(cfg config.Config, application *app.App) *gin.Engine {
	engine := gin.New()
	if cfg.OTel.Enabled() {
		engine.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	engine.Use(middleware.Recovery(), middleware.Logger())

	validator := signature.NewValidator(map[signature.WebhookKind]string{
		signature.KindMessage:      cfg.Webhook.MessageSecret,
		signature.KindConversation: cfg.Webhook.ConversationSecret,
		signature.KindTelegram:     cfg.Telegram.WebhookSecret,
	})
	httprouter.SetupRoutes(engine, application.Services, httprouter.RouterConfig{
		Validator: validator,
		Webhook: webhook.Config{
			SignatureHeader: cfg.Webhook.SignatureHeader,
			MaxBodyBytes:    cfg.Webhook.MaxBodyBytes,
		},
		AdminAPIKey: cfg.AdminAPIKey,
	})
	return engine
}

const banner = `
   _   ___ ___ ___ ___ _____ _   _  _ _____
  /_\ / __/ __|_ _/ __|_   _/_\ | \| |_   _|
 / _ \\__ \__ \| |\__ \ | |/ _ \| .' | | |
/_/ \_\___/___/___|___/ |_/_/ \_\_|\_| |_|   server
`
