package handler

// Handlers groups every HTTP handler the routers mount. DevToken is nil
// outside development.
type Handlers struct {
	Connection   *ConnectionHandler
	Message      *MessageHandler
	Conversation *ConversationHandler
	WebSocket    *WebSocketHandler
	Health       *HealthHandler
	DevToken     *DevTokenHandler
}
