package websocket

import (
	"context"
	"encoding/json"
	"time"

	"campuslink/internal/domain/entity"
	"campuslink/internal/usecase"
	"campuslink/pkg/logger"
)

// Event is the envelope of every frame in both directions.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func newEvent(eventType string, data interface{}) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Relay carries events to users connected to other instances.
type Relay interface {
	Publish(ctx context.Context, userID string, payload []byte) error
	// Subscribe blocks, handing every event published by other instances to
	// deliver, until ctx is done.
	Subscribe(ctx context.Context, deliver func(userID string, payload []byte)) error
}

// PresenceTracker is implemented by relays that also share who is online.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// MessageService is what the channel delegates inbound actions to.
type MessageService interface {
	Send(ctx context.Context, sender entity.Identity, input usecase.SendMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, readerID, messageID string) (*entity.Message, error)
	MarkConversationRead(ctx context.Context, readerID, otherUserID string) (*usecase.ConversationReadResult, error)
}

// Manager owns the registry and routes events to sockets.
type Manager struct {
	registry   Registry
	relay      Relay
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	messages MessageService
	limiter  usecase.Limiter
}

// NewManager builds a manager; relay may be nil for a single instance.
func NewManager(registry Registry, relay Relay) *Manager {
	if registry == nil {
		registry = NewLocalRegistry()
	}
	return &Manager{
		registry:   registry,
		relay:      relay,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Bind attaches the services inbound events are delegated to. The use cases
// are built with the manager as their notifier, so this happens after both
// exist.
func (m *Manager) Bind(messages MessageService, limiter usecase.Limiter) {
	m.messages = messages
	m.limiter = limiter
}

// Start runs the registry loop and, with a relay, the relay subscription
// until ctx is done. Open sockets are closed on the way out.
func (m *Manager) Start(ctx context.Context) {
	if m.relay != nil {
		go func() {
			deliver := func(userID string, payload []byte) { m.deliverLocal(userID, payload) }
			if err := m.relay.Subscribe(ctx, deliver); err != nil && ctx.Err() == nil {
				logger.Error("WebSocket: relay subscription ended: %v", err)
			}
		}()
	}

	go func() {
		defer close(m.done)

		refresh := time.NewTicker(pongWait)
		defer refresh.Stop()

		for {
			select {
			case client := <-m.register:
				if replaced := m.registry.Set(client); replaced != nil {
					logger.Info("WebSocket: new login for %s replaces previous socket", client.UserID)
					replaced.Close()
				}
				client.setState(StateConnected)
				m.trackPresence(client.UserID, true)
				logger.Info("WebSocket: client registered: %s (%s)", client.UserID, client.Role)

			case client := <-m.unregister:
				if m.registry.Remove(client) {
					m.trackPresence(client.UserID, false)
					logger.Info("WebSocket: client unregistered: %s", client.UserID)
				}
				client.Close()

			case <-refresh.C:
				m.refreshPresence()

			case <-ctx.Done():
				m.registry.Range(func(c *Client) bool {
					m.registry.Remove(c)
					c.Close()
					return true
				})
				return
			}
		}
	}()
}

// Register hands a verified client to the loop. It reports false when the
// manager has stopped.
func (m *Manager) Register(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		client.Close()
		return false
	}
}

func (m *Manager) unregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
		client.Close()
	}
}

// Notify sends an event to userID: locally when the user is connected here,
// otherwise through the relay. Implements usecase.Notifier.
func (m *Manager) Notify(userID, eventType string, payload interface{}) {
	data, err := json.Marshal(newEvent(eventType, payload))
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", eventType, err)
		return
	}

	if m.deliverLocal(userID, data) {
		return
	}
	if m.relay != nil {
		if err := m.relay.Publish(context.Background(), userID, data); err != nil {
			logger.Warn("WebSocket: relay publish of %s to %s failed: %v", eventType, userID, err)
		}
	}
}

func (m *Manager) deliverLocal(userID string, data []byte) bool {
	client, ok := m.registry.Get(userID)
	if !ok {
		return false
	}
	return client.Enqueue(data)
}

// sendToClient writes an event to one socket only.
func (m *Manager) sendToClient(client *Client, eventType string, payload interface{}) {
	data, err := json.Marshal(newEvent(eventType, payload))
	if err != nil {
		logger.Error("WebSocket: failed to encode %s event: %v", eventType, err)
		return
	}
	client.Enqueue(data)
}

// IsOnline reports whether userID has a socket here or, with a presence
// aware relay, on any instance.
func (m *Manager) IsOnline(ctx context.Context, userID string) bool {
	if _, ok := m.registry.Get(userID); ok {
		return true
	}
	if tracker, ok := m.relay.(PresenceTracker); ok {
		online, err := tracker.IsOnline(ctx, userID)
		if err != nil {
			logger.Debug("WebSocket: presence lookup for %s failed: %v", userID, err)
			return false
		}
		return online
	}
	return false
}

func (m *Manager) ConnectedClients() int {
	return m.registry.Len()
}

// refreshPresence extends the presence keys of every local socket.
func (m *Manager) refreshPresence() {
	if _, ok := m.relay.(PresenceTracker); !ok {
		return
	}
	m.registry.Range(func(c *Client) bool {
		m.trackPresence(c.UserID, true)
		return true
	})
}

func (m *Manager) trackPresence(userID string, online bool) {
	tracker, ok := m.relay.(PresenceTracker)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var err error
	if online {
		err = tracker.MarkOnline(ctx, userID)
	} else {
		err = tracker.MarkOffline(ctx, userID)
	}
	if err != nil {
		logger.Warn("WebSocket: presence update for %s failed: %v", userID, err)
	}
}
