package router

import (
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/handler"
	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/internal/usecase"
)

func SetupConnectionRouter(e *echo.Echo, connectionHandler *handler.ConnectionHandler, authMiddleware *middleware.AuthMiddleware, limiter usecase.Limiter) {
	connections := e.Group("/v1/connections")
	connections.Use(authMiddleware.Authenticate)
	connections.Use(middleware.RateLimit(limiter, ratelimit.ActionAPIRequest))

	connections.POST("", connectionHandler.CreateRequest)    // POST /v1/connections
	connections.PUT("/response", connectionHandler.Respond)  // PUT /v1/connections/response
	connections.GET("/status", connectionHandler.Status)     // GET /v1/connections/status?with=
	connections.GET("/pending", connectionHandler.Pending)   // GET /v1/connections/pending?as=
	connections.GET("/accepted", connectionHandler.Accepted) // GET /v1/connections/accepted
}
