package router

import (
	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler/webhook"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/signature"
)

func WebhookRouter(router *gin.RouterGroup, h *webhook.RespondIOWebhookHandler, tg *webhook.TelegramWebhookHandler) {
	router.POST("/message-received", h.Handle(signature.KindMessage))
	router.POST("/conversation-opened", h.Handle(signature.KindConversation))
	router.POST("/telegram", tg.Handle)
	router.GET("/health", h.Health)
}
