package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"campuslink/internal/domain/entity"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/internal/usecase"
	"campuslink/pkg/errors"
	"campuslink/pkg/logger"
)

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type SendMessageData struct {
	RecipientID string             `json:"recipientId"`
	Content     string             `json:"content"`
	MessageType entity.MessageType `json:"messageType,omitempty"`
	Attachment  *entity.Attachment `json:"attachment,omitempty"`
	TempID      string             `json:"tempId,omitempty"`
}

type TypingData struct {
	RecipientID string `json:"recipientId"`
}

type MarkReadData struct {
	MessageID string `json:"messageId"`
}

type MarkConversationReadData struct {
	WithUserID string `json:"withUserId"`
}

// MessageSentData acknowledges a send-message to its sender.
type MessageSentData struct {
	Message   *entity.Message `json:"message"`
	TempID    string          `json:"tempId,omitempty"`
	Delivered bool            `json:"delivered"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Code                     string                 `json:"code"`
	Message                  string                 `json:"message"`
	Event                    string                 `json:"event,omitempty"`
	TempID                   string                 `json:"tempId,omitempty"`
	SuggestConnectionRequest bool                   `json:"suggestConnectionRequest,omitempty"`
	Details                  map[string]interface{} `json:"details,omitempty"`
}

// HandleClientMessage dispatches one inbound frame. Failures go back to the
// sending socket as a single error event.
func (m *Manager) HandleClientMessage(ctx context.Context, client *Client, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.Debug("WebSocket: malformed frame from %s: %v", client.UserID, err)
		m.sendError(client, "", "", errors.BadRequest("Invalid message format", err))
		return
	}

	switch event.Type {
	case entity.EventPing:
		m.sendToClient(client, entity.EventPong, map[string]string{"status": "alive"})

	case entity.EventSendMessage:
		m.handleSendMessage(ctx, client, event.Data)

	case entity.EventTyping:
		m.handleTyping(client, event.Data, entity.EventUserTyping)

	case entity.EventStopTyping:
		m.handleTyping(client, event.Data, entity.EventUserStoppedTyping)

	case entity.EventMarkRead:
		m.handleMarkRead(ctx, client, event.Data)

	case entity.EventMarkConversationRead:
		m.handleMarkConversationRead(ctx, client, event.Data)

	default:
		logger.Debug("WebSocket: unknown event type %q from %s", event.Type, client.UserID)
		m.sendError(client, event.Type, "", errors.BadRequest("Unknown event type", nil))
	}
}

func (m *Manager) handleSendMessage(ctx context.Context, client *Client, raw json.RawMessage) {
	var data SendMessageData
	if err := decodeData(raw, &data); err != nil {
		m.sendError(client, entity.EventSendMessage, "", err)
		return
	}
	if m.messages == nil {
		m.sendError(client, entity.EventSendMessage, data.TempID, errors.Internal("Messaging is not available", nil))
		return
	}

	message, err := m.messages.Send(ctx, client.Identity(), usecase.SendMessageInput{
		RecipientID: data.RecipientID,
		Content:     data.Content,
		MessageType: data.MessageType,
		Attachment:  data.Attachment,
	})
	if err != nil {
		m.sendError(client, entity.EventSendMessage, data.TempID, err)
		return
	}

	m.sendToClient(client, entity.EventMessageSent, MessageSentData{
		Message:   message,
		TempID:    data.TempID,
		Delivered: m.IsOnline(ctx, message.RecipientID),
	})
}

func (m *Manager) handleTyping(client *Client, raw json.RawMessage, outbound string) {
	var data TypingData
	if err := decodeData(raw, &data); err != nil {
		return
	}
	if data.RecipientID == "" || data.RecipientID == client.UserID {
		return
	}
	// Typing notices are dropped silently when over the limit.
	if m.limiter != nil {
		if allowed, _ := m.limiter.Allow(client.UserID, ratelimit.ActionTyping); !allowed {
			return
		}
	}

	m.Notify(data.RecipientID, outbound, entity.TypingNotice{
		UserID:         client.UserID,
		ConversationID: entity.ConversationID(client.UserID, data.RecipientID),
	})
}

func (m *Manager) handleMarkRead(ctx context.Context, client *Client, raw json.RawMessage) {
	var data MarkReadData
	if err := decodeData(raw, &data); err != nil {
		m.sendError(client, entity.EventMarkRead, "", err)
		return
	}
	if m.messages == nil {
		return
	}
	if _, err := m.messages.MarkRead(ctx, client.UserID, data.MessageID); err != nil {
		m.sendError(client, entity.EventMarkRead, "", err)
	}
}

func (m *Manager) handleMarkConversationRead(ctx context.Context, client *Client, raw json.RawMessage) {
	var data MarkConversationReadData
	if err := decodeData(raw, &data); err != nil {
		m.sendError(client, entity.EventMarkConversationRead, "", err)
		return
	}
	if m.messages == nil {
		return
	}
	if _, err := m.messages.MarkConversationRead(ctx, client.UserID, data.WithUserID); err != nil {
		m.sendError(client, entity.EventMarkConversationRead, "", err)
	}
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.Validation("data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.BadRequest("Invalid event data", err)
	}
	return nil
}

func (m *Manager) sendError(client *Client, eventType, tempID string, err error) {
	data := ErrorData{
		Code:    errors.CodeInternal,
		Message: "An unexpected error occurred",
		Event:   eventType,
		TempID:  tempID,
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		data.Code = appErr.Code
		data.Message = appErr.Message
		data.Details = appErr.Details
		if suggest, ok := appErr.Details["suggestConnectionRequest"].(bool); ok {
			data.SuggestConnectionRequest = suggest
		}
	} else {
		logger.Error("WebSocket: %s from %s failed: %v", eventType, client.UserID, err)
	}

	m.sendToClient(client, entity.EventError, data)
}
