package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/dto"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/mapper"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
)

// readBody reads at most limit bytes and answers the request itself when
// that fails.
func readBody(c *gin.Context, limit int64) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	return body, true
}

// ingest hands a verified body to svc and writes the webhook response.
func ingest(c *gin.Context, svc service.EventIngestService, kind string, body []byte) {
	ctx := c.Request.Context()

	var traceID string
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID = spanCtx.TraceID().String()
	}

	result, err := svc.Ingest(ctx, body, traceID)
	if err != nil {
		switch {
		case errors.Is(err, mapper.ErrParse):
			slog.WarnContext(ctx, "malformed webhook payload", "webhook_kind", kind, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		case errors.Is(err, service.ErrQueueUnavailable):
			slog.ErrorContext(ctx, "failed to enqueue webhook event", "webhook_kind", kind, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		default:
			slog.ErrorContext(ctx, "failed to ingest webhook event", "webhook_kind", kind, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		}
		return
	}

	slog.InfoContext(ctx, "webhook processed",
		"webhook_kind", kind,
		"status", result.Status,
		"event_kind", result.Event.Kind,
		"event_id", result.Event.ID)

	c.JSON(http.StatusOK, dto.ToWebhookResponse(result))
}
