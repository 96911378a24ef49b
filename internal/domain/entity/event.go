package entity

// Live channel event names.
const (
	EventMessageSent        = "message-sent"
	EventNewMessage         = "new-message"
	EventUserTyping         = "user-typing"
	EventUserStoppedTyping  = "user-stopped-typing"
	EventMessageRead        = "message-read"
	EventConnectionRequest  = "connection-request"
	EventConnectionResponse = "connection-response"
	EventError              = "error"
	EventPong               = "pong"

	EventSendMessage          = "send-message"
	EventTyping               = "typing"
	EventStopTyping           = "stop-typing"
	EventMarkRead             = "mark-read"
	EventMarkConversationRead = "mark-conversation-read"
	EventPing                 = "ping"
)

// ReadReceipt tells a sender that the recipient has read one message or a
// whole conversation. MessageID is empty for the conversation form.
type ReadReceipt struct {
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	Count          int    `json:"count,omitempty"`
	ReadAt         int64  `json:"read_at"`
}

// TypingNotice is relayed between the two participants of a pair.
type TypingNotice struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}
