package router

import (
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/handler"
	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/internal/usecase"
)

func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware, limiter usecase.Limiter) {
	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)
	conversations.Use(middleware.RateLimit(limiter, ratelimit.ActionAPIRequest))

	conversations.GET("", conversationHandler.List)
	conversations.PUT("/read", messageHandler.MarkConversationRead)
}
