package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/dto"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/store"
)

type SessionHandler struct {
	conversations service.ConversationService
	adminAPIKey   string
}

func NewSessionHandler(conversations service.ConversationService, adminAPIKey string) *SessionHandler {
	return &SessionHandler{
		conversations: conversations,
		adminAPIKey:   adminAPIKey,
	}
}

func (h *SessionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	contactID := strings.TrimSpace(c.Param("contact_id"))

	session, err := h.conversations.Session(ctx, contactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load session", "contact_id", contactID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contact_id": contactID,
		"session":    dto.ToSessionResponse(session),
	})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	contactID := strings.TrimSpace(c.Param("contact_id"))

	if err := h.conversations.Reset(ctx, contactID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, store.ErrLockNotAcquired):
			c.JSON(http.StatusConflict, gin.H{"error": "session is busy, retry shortly"})
		default:
			slog.ErrorContext(ctx, "failed to reset session", "contact_id", contactID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset session"})
		}
		return
	}

	slog.InfoContext(ctx, "session reset", "contact_id", contactID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "contact_id": contactID})
}

// RequireAdminAPIKey rejects requests without the admin key, given either
// as X-Admin-API-Key or as a bearer token.
func (h *SessionHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(h.adminAPIKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
