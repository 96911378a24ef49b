package router

import (
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/handler"
	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/usecase"
)

// Setup mounts every route. limiter may be nil to disable request limiting.
func Setup(e *echo.Echo, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware, limiter usecase.Limiter, environment string) {
	SetupHealthRouter(e, h.Health)
	SetupConnectionRouter(e, h.Connection, authMiddleware, limiter)
	SetupMessageRouter(e, h.Message, authMiddleware, limiter)
	SetupConversationRouter(e, h.Conversation, h.Message, authMiddleware, limiter)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupDevRouter(e, h.DevToken, environment)
}
