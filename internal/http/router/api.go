package router

import (
	"github.com/gin-gonic/gin"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler"
)

func MessageRouter(router *gin.RouterGroup, h *handler.MessageHandler) {
	router.POST("/process-message", h.Process)
}

// SessionRouter exposes session inspection and reset behind the admin key.
func SessionRouter(router *gin.RouterGroup, h *handler.SessionHandler) {
	router.Use(h.RequireAdminAPIKey())
	router.GET("/:contact_id", h.Get)
	router.DELETE("/:contact_id", h.Delete)
}
