package webhook

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/signature"
)

// TelegramSecretHeader carries the secret_token registered with setWebhook.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhookHandler receives Bot API updates for the assistant's bot.
type TelegramWebhookHandler struct {
	validator *signature.Validator
	ingest    service.EventIngestService
	maxBody   int64
}

func NewTelegramWebhookHandler(validator *signature.Validator, ingest service.EventIngestService, maxBodyBytes int64) *TelegramWebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &TelegramWebhookHandler{
		validator: validator,
		ingest:    ingest,
		maxBody:   maxBodyBytes,
	}
}

func (h *TelegramWebhookHandler) Handle(c *gin.Context) {
	if !h.validator.ValidToken(signature.KindTelegram, c.GetHeader(TelegramSecretHeader)) {
		slog.WarnContext(c.Request.Context(), "telegram webhook secret rejected",
			"secret_configured", h.validator.Configured(signature.KindTelegram))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	body, ok := readBody(c, h.maxBody)
	if !ok {
		return
	}
	ingest(c, h.ingest, string(signature.KindTelegram), body)
}
