package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"campuslink/internal/domain/entity"
	"campuslink/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

type ClientState int32

const (
	StateDisconnected ClientState = iota
	StateAuthenticating
	StateConnected
)

func (s ClientState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client is one authenticated socket.
type Client struct {
	UserID string
	Role   entity.Role

	conn  *websocket.Conn
	send  chan []byte
	state atomic.Int32

	mutex  sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection for an already verified identity.
func NewClient(conn *websocket.Conn, identity entity.Identity) *Client {
	c := &Client{
		UserID: identity.UserID,
		Role:   identity.Role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	c.state.Store(int32(StateAuthenticating))
	return c
}

func (c *Client) Identity() entity.Identity {
	return entity.Identity{UserID: c.UserID, Role: c.Role}
}

func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

func (c *Client) setState(s ClientState) {
	c.state.Store(int32(s))
}

// Enqueue queues data for the write pump. It reports false when the client
// is closed or its buffer is full; a full buffer closes the client.
func (c *Client) Enqueue(data []byte) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		logger.Warn("WebSocket: send buffer full for %s, closing", c.UserID)
		c.closeLocked()
		return false
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.setState(StateDisconnected)
}

// ReadPump dispatches inbound frames to the manager until the socket fails,
// then unregisters the client.
func (c *Client) ReadPump(ctx context.Context, m *Manager) {
	defer func() {
		m.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket: read error for %s: %v", c.UserID, err)
			}
			return
		}
		m.HandleClientMessage(ctx, c, message)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("WebSocket: write error for %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
