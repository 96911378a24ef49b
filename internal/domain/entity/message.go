package entity

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText              MessageType = "text"
	MessageTypeConnectionRequest MessageType = "connection_request"
	MessageTypeSystem            MessageType = "system"
	MessageTypeFile              MessageType = "file"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeConnectionRequest, MessageTypeSystem, MessageTypeFile:
		return true
	}
	return false
}

// IsUserSendable reports whether clients may send this type directly;
// connection_request and system messages are produced by the service.
func (t MessageType) IsUserSendable() bool {
	return t == MessageTypeText || t == MessageTypeFile
}

// Attachment is upload metadata. The upload itself happens elsewhere.
type Attachment struct {
	URL      string `json:"url" firestore:"url" bson:"url"`
	Name     string `json:"name,omitempty" firestore:"name,omitempty" bson:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty" firestore:"mimeType,omitempty" bson:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty" firestore:"size,omitempty" bson:"size,omitempty"`
}

type Message struct {
	ID             string      `json:"id" firestore:"id" bson:"_id"`
	ConversationID string      `json:"conversation_id" firestore:"conversationId" bson:"conversationId"`
	SenderID       string      `json:"sender_id" firestore:"senderId" bson:"senderId"`
	RecipientID    string      `json:"recipient_id" firestore:"recipientId" bson:"recipientId"`
	SenderRole     Role        `json:"sender_role" firestore:"senderRole" bson:"senderRole"`
	RecipientRole  Role        `json:"recipient_role" firestore:"recipientRole" bson:"recipientRole"`
	Content        string      `json:"content" firestore:"content" bson:"content"`
	MessageType    MessageType `json:"message_type" firestore:"messageType" bson:"messageType"`
	IsRead         bool        `json:"is_read" firestore:"isRead" bson:"isRead"`
	ReadAt         *time.Time  `json:"read_at,omitempty" firestore:"readAt,omitempty" bson:"readAt,omitempty"`
	ConnectionID   string      `json:"connection_id,omitempty" firestore:"connectionId,omitempty" bson:"connectionId,omitempty"`
	Attachment     *Attachment `json:"attachment,omitempty" firestore:"attachment,omitempty" bson:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"created_at" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time   `json:"updated_at" firestore:"updatedAt" bson:"updatedAt"`
}

// Preview is the text stored as a conversation's last message.
func (m *Message) Preview() string {
	if m.Content != "" {
		return m.Content
	}
	if m.Attachment != nil {
		if m.Attachment.Name != "" {
			return m.Attachment.Name
		}
		return "Attachment"
	}
	return ""
}

// Cursor marks a position in a pair's history ordered by (createdAt, id).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the cursor positioned at m.
func CursorOf(m *Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Before reports whether m sorts strictly before the cursor.
func (c Cursor) Before(m *Message) bool {
	if m.CreatedAt.Equal(c.CreatedAt) {
		return m.ID < c.ID
	}
	return m.CreatedAt.Before(c.CreatedAt)
}

// After reports whether m sorts strictly after the cursor.
func (c Cursor) After(m *Message) bool {
	if m.CreatedAt.Equal(c.CreatedAt) {
		return m.ID > c.ID
	}
	return m.CreatedAt.After(c.CreatedAt)
}

func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, fmt.Errorf("malformed cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	return Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// LessMessage orders messages by (createdAt, id) ascending.
func LessMessage(a, b *Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// HistoryQuery selects one page of a pair's history. At most one of Before
// and After is set; with neither the newest Limit messages are returned.
type HistoryQuery struct {
	Limit  int
	Before *Cursor
	After  *Cursor
}

// HistoryPage is returned oldest first.
type HistoryPage struct {
	Messages   []*Message `json:"messages"`
	PrevCursor string     `json:"prev_cursor,omitempty"`
	NextCursor string     `json:"next_cursor,omitempty"`
	HasOlder   bool       `json:"has_older"`
	HasNewer   bool       `json:"has_newer"`
}
