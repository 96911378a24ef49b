package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "campuslink/internal/infrastructure/websocket"
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storeBackend string
	store        Pinger
	relay        Pinger
	wsManager    *ws.Manager
}

// NewHealthHandler takes optional store and relay probes; nil means the
// component has nothing remote to check.
func NewHealthHandler(storeBackend string, store, relay Pinger, wsManager *ws.Manager) *HealthHandler {
	return &HealthHandler{
		storeBackend: storeBackend,
		store:        store,
		relay:        relay,
		wsManager:    wsManager,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	storeStatus := probe(ctx, h.store)
	relayStatus := probe(ctx, h.relay)

	status := http.StatusOK
	body := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
		"store":  map[string]string{"backend": h.storeBackend, "status": storeStatus},
		"relay":  relayStatus,
	}
	if h.wsManager != nil {
		body["connected_clients"] = h.wsManager.ConnectedClients()
	}
	if storeStatus == "down" || relayStatus == "down" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	return c.JSON(status, body)
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
