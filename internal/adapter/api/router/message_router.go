package router

import (
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/handler"
	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/internal/usecase"
)

func SetupMessageRouter(e *echo.Echo, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware, limiter usecase.Limiter) {
	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)
	messages.Use(middleware.RateLimit(limiter, ratelimit.ActionAPIRequest))

	messages.POST("", messageHandler.Send)
	messages.GET("", messageHandler.History) // ?with=&limit=&before=&after=
	messages.PUT("/read", messageHandler.MarkRead)
	messages.DELETE("/:id", messageHandler.Delete)
}
