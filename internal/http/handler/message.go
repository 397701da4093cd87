package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/dto"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
)

type MessageHandler struct {
	messages service.MessageService
}

func NewMessageHandler(messages service.MessageService) *MessageHandler {
	RegisterValidations()
	return &MessageHandler{messages: messages}
}

// Process runs one conversation turn synchronously and returns the reply in
// the response instead of sending it through the chat platform.
func (h *MessageHandler) Process(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ProcessMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.messages.Process(ctx, req.ToParams())
	if err != nil {
		if errors.Is(err, service.ErrMissingContact) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to process message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, dto.ToProcessMessageResponse(result))
}
