package handler

import (
	"context"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/middleware"
	ws "campuslink/internal/infrastructure/websocket"
	"campuslink/internal/usecase"
	"campuslink/pkg/logger"
	"campuslink/pkg/response"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	verifier       usecase.TokenVerifier
	allowedOrigins []string
	upgrader       gorillaws.Upgrader
}

// NewWebSocketHandler accepts every origin when allowedOrigins is empty.
func NewWebSocketHandler(wsManager *ws.Manager, verifier usecase.TokenVerifier, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		wsManager:      wsManager,
		verifier:       verifier,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	logger.Warn("WebSocket: rejected origin %s", origin)
	return false
}

// HandleWebSocket authenticates before upgrading, so a bad token gets a
// plain 401 and never reaches the registry.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token, err := middleware.TokenFromRequest(c)
	if err != nil {
		return response.Error(c, err)
	}
	identity, err := h.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		logger.Debug("WebSocket: upgrade failed for %s: %v", identity.UserID, err)
		return nil
	}

	client := ws.NewClient(conn, *identity)
	if !h.wsManager.Register(client) {
		conn.Close()
		return nil
	}

	go client.WritePump()
	// Inbound handling outlives the upgrade request.
	client.ReadPump(context.WithoutCancel(c.Request().Context()), h.wsManager)
	return nil
}
