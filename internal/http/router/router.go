package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler/webhook"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/signature"
)

type RouterConfig struct {
	Validator   *signature.Validator
	Webhook     webhook.Config
	AdminAPIKey string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewRespondIOWebhookHandler(cfg.Validator, services.Ingest(), cfg.Webhook)
	telegramHandler := webhook.NewTelegramWebhookHandler(cfg.Validator, services.TelegramIngest(), cfg.Webhook.MaxBodyBytes)
	WebhookRouter(router.Group("/webhook"), webhookHandler, telegramHandler)

	api := router.Group("/api")
	{
		messageHandler := handler.NewMessageHandler(services.Messages())
		MessageRouter(api, messageHandler)

		sessionHandler := handler.NewSessionHandler(services.Conversations(), cfg.AdminAPIKey)
		SessionRouter(api.Group("/session"), sessionHandler)
	}
}
