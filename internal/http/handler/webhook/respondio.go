package webhook

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/dto"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/signature"
)

const defaultSignatureHeader = "X-Webhook-Signature"

type Config struct {
	SignatureHeader string
	MaxBodyBytes    int64
}

// RespondIOWebhookHandler verifies, normalizes and enqueues chat platform
// webhooks. It answers as soon as the event is on the queue.
type RespondIOWebhookHandler struct {
	validator *signature.Validator
	ingest    service.EventIngestService
	cfg       Config
}

func NewRespondIOWebhookHandler(validator *signature.Validator, ingest service.EventIngestService, cfg Config) *RespondIOWebhookHandler {
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = defaultSignatureHeader
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &RespondIOWebhookHandler{
		validator: validator,
		ingest:    ingest,
		cfg:       cfg,
	}
}

// Handle returns the handler for one webhook route, checked against the
// secret configured for kind.
func (h *RespondIOWebhookHandler) Handle(kind signature.WebhookKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		body, ok := readBody(c, h.cfg.MaxBodyBytes)
		if !ok {
			return
		}

		if !h.validator.Valid(kind, body, c.GetHeader(h.cfg.SignatureHeader)) {
			slog.WarnContext(ctx, "webhook signature rejected",
				"webhook_kind", kind,
				"secret_configured", h.validator.Configured(kind))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		ingest(c, h.ingest, string(kind), body)
	}
}

// Health reports which webhook secrets are configured, never their values.
func (h *RespondIOWebhookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.WebhookHealthResponse{
		Status:             "ok",
		MessageSecret:      h.validator.Configured(signature.KindMessage),
		ConversationSecret: h.validator.Configured(signature.KindConversation),
		TelegramSecret:     h.validator.Configured(signature.KindTelegram),
	})
}
