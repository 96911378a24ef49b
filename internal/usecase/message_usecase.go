package usecase

import (
	"context"
	"strings"
	"time"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/internal/domain/service"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/pkg/errors"
	"campuslink/pkg/logger"
	"campuslink/pkg/utils"
)

type MessageUseCase struct {
	messageRepo    repository.MessageRepository
	connectionRepo repository.ConnectionRepository
	userRepo       repository.UserRepository
	conversations  *ConversationUseCase
	notifier       Notifier
	limiter        Limiter
	defaultLimit   int
	maxLimit       int
}

func NewMessageUseCase(
	messageRepo repository.MessageRepository,
	connectionRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	conversations *ConversationUseCase,
	notifier Notifier,
	limiter Limiter,
	defaultLimit, maxLimit int,
) *MessageUseCase {
	if notifier == nil {
		notifier = NoopNotifier
	}
	return &MessageUseCase{
		messageRepo:    messageRepo,
		connectionRepo: connectionRepo,
		userRepo:       userRepo,
		conversations:  conversations,
		notifier:       notifier,
		limiter:        limiter,
		defaultLimit:   defaultLimit,
		maxLimit:       maxLimit,
	}
}

type SendMessageInput struct {
	RecipientID string
	Content     string
	MessageType entity.MessageType
	Attachment  *entity.Attachment
}

type HistoryInput struct {
	OtherUserID string
	Limit       int
	Before      string
	After       string
}

// ConversationReadResult reports a whole-conversation read.
type ConversationReadResult struct {
	ConversationID string `json:"conversation_id"`
	MarkedRead     int    `json:"marked_read"`
}

func (uc *MessageUseCase) Send(ctx context.Context, sender entity.Identity, input SendMessageInput) (*entity.Message, error) {
	if input.MessageType == "" {
		input.MessageType = entity.MessageTypeText
	}
	if err := validateSend(sender, input); err != nil {
		return nil, err
	}

	if err := checkLimit(uc.limiter, sender.UserID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}

	recipientRole, err := uc.userRepo.RoleOf(ctx, input.RecipientID)
	if err != nil {
		return nil, err
	}

	status := entity.ConnectionNone
	if service.NeedsConnection(sender.Role, recipientRole) {
		conn, err := uc.connectionRepo.FindBetween(ctx, sender.UserID, input.RecipientID)
		if err != nil {
			return nil, err
		}
		status = entity.StatusOf(conn)
	}

	if decision := service.CanSend(sender.Role, recipientRole, status); !decision.Allowed {
		logger.Infow("message denied",
			"sender", sender.UserID, "senderRole", sender.Role,
			"recipient", input.RecipientID, "recipientRole", recipientRole,
			"reason", decision.Reason)
		return nil, decision.Err()
	}

	message := &entity.Message{
		ConversationID: entity.ConversationID(sender.UserID, input.RecipientID),
		SenderID:       sender.UserID,
		RecipientID:    input.RecipientID,
		SenderRole:     sender.Role,
		RecipientRole:  recipientRole,
		Content:        input.Content,
		MessageType:    input.MessageType,
		Attachment:     input.Attachment,
	}

	if err := uc.record(ctx, message); err != nil {
		return nil, err
	}

	uc.notifier.Notify(message.RecipientID, entity.EventNewMessage, message)
	return message, nil
}

func validateSend(sender entity.Identity, input SendMessageInput) error {
	if input.RecipientID == "" {
		return errors.Validation("recipient_id is required")
	}
	if input.RecipientID == sender.UserID {
		return errors.Validation("You cannot message yourself")
	}
	if !input.MessageType.IsUserSendable() {
		return errors.Validation("message_type must be one of: text file")
	}
	if input.MessageType == entity.MessageTypeFile && (input.Attachment == nil || input.Attachment.URL == "") {
		return errors.Validation("A file message requires an attachment")
	}
	if strings.TrimSpace(input.Content) == "" && input.Attachment == nil {
		return errors.Validation("Message content cannot be empty")
	}
	return nil
}

// record persists a message and folds it into the conversation rollup,
// detached from the caller's cancellation.
func (uc *MessageUseCase) record(ctx context.Context, message *entity.Message) error {
	ctx = context.WithoutCancel(ctx)

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		return err
	}
	if _, err := uc.conversations.UpsertFromMessage(ctx, message); err != nil {
		logger.Error("Failed to update conversation %s for message %s: %v", message.ConversationID, message.ID, err)
		return err
	}
	return nil
}

// History pages through the conversation between userID and the other
// user. Without a cursor it returns the newest page.
func (uc *MessageUseCase) History(ctx context.Context, userID string, input HistoryInput) (*entity.HistoryPage, error) {
	if input.OtherUserID == "" {
		return nil, errors.Validation("with is required")
	}
	if input.Before != "" && input.After != "" {
		return nil, errors.Validation("Use either before or after, not both")
	}

	query := entity.HistoryQuery{Limit: utils.ClampLimit(input.Limit, uc.defaultLimit, uc.maxLimit)}
	if input.Before != "" {
		c, err := entity.DecodeCursor(input.Before)
		if err != nil {
			return nil, errors.BadRequest("Invalid before cursor", err)
		}
		query.Before = &c
	}
	if input.After != "" {
		c, err := entity.DecodeCursor(input.After)
		if err != nil {
			return nil, errors.BadRequest("Invalid after cursor", err)
		}
		query.After = &c
	}

	messages, more, err := uc.messageRepo.History(ctx, entity.ConversationID(userID, input.OtherUserID), query)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*entity.Message{}
	}

	page := &entity.HistoryPage{Messages: messages}
	switch {
	case query.After != nil:
		page.HasNewer = more
		page.HasOlder = true
		page.NextCursor = input.After
	case query.Before != nil:
		page.HasOlder = more
		page.HasNewer = true
	default:
		page.HasOlder = more
	}
	if len(messages) > 0 {
		page.PrevCursor = entity.CursorOf(messages[0]).Encode()
		page.NextCursor = entity.CursorOf(messages[len(messages)-1]).Encode()
	}

	return page, nil
}

// MarkRead marks one message read by its recipient and tells the sender.
// Calls by the sender are accepted and change nothing.
func (uc *MessageUseCase) MarkRead(ctx context.Context, readerID, messageID string) (*entity.Message, error) {
	if messageID == "" {
		return nil, errors.Validation("message_id is required")
	}

	message, changed, err := uc.messageRepo.MarkRead(ctx, messageID, readerID, time.Now())
	if err != nil {
		return nil, err
	}
	if message.SenderID != readerID && message.RecipientID != readerID {
		return nil, errors.Forbidden("You are not a participant of this message", nil)
	}

	if changed {
		uc.notifier.Notify(message.SenderID, entity.EventMessageRead, entity.ReadReceipt{
			MessageID:      message.ID,
			ConversationID: message.ConversationID,
			ReaderID:       readerID,
			ReadAt:         message.ReadAt.Unix(),
		})
	}
	return message, nil
}

// MarkConversationRead marks everything the other user sent to readerID as
// read and clears readerID's unread balance.
func (uc *MessageUseCase) MarkConversationRead(ctx context.Context, readerID, otherUserID string) (*ConversationReadResult, error) {
	if otherUserID == "" {
		return nil, errors.Validation("with_user_id is required")
	}
	if otherUserID == readerID {
		return nil, errors.Validation("You cannot read a conversation with yourself")
	}

	now := time.Now()
	conversationID := entity.ConversationID(readerID, otherUserID)

	count, err := uc.messageRepo.MarkAllRead(ctx, conversationID, readerID, now)
	if err != nil {
		return nil, err
	}
	_, reset, err := uc.conversations.ResetUnread(ctx, conversationID, readerID, now)
	if err != nil {
		return nil, err
	}

	if count > 0 || reset {
		uc.notifier.Notify(otherUserID, entity.EventMessageRead, entity.ReadReceipt{
			ConversationID: conversationID,
			ReaderID:       readerID,
			Count:          count,
			ReadAt:         now.Unix(),
		})
	}

	return &ConversationReadResult{ConversationID: conversationID, MarkedRead: count}, nil
}

// Delete removes a message at its sender's request. The conversation rollup
// keeps its last-message preview.
func (uc *MessageUseCase) Delete(ctx context.Context, requesterID, messageID string) error {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return errors.Forbidden("Only the sender can delete a message", nil)
	}
	return uc.messageRepo.Delete(ctx, messageID)
}

func checkLimit(limiter Limiter, userID, action string) error {
	if limiter == nil {
		return nil
	}
	if allowed, wait := limiter.Allow(userID, action); !allowed {
		logger.Warn("Rate limited: user %s action %s must wait %v", userID, action, wait)
		return errors.TooManyRequests("Rate limit exceeded, please slow down", wait)
	}
	return nil
}
