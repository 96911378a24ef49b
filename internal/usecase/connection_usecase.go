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
)

type ConnectionUseCase struct {
	connectionRepo repository.ConnectionRepository
	userRepo       repository.UserRepository
	messages       *MessageUseCase
	notifier       Notifier
	limiter        Limiter
}

func NewConnectionUseCase(
	connectionRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	messages *MessageUseCase,
	notifier Notifier,
	limiter Limiter,
) *ConnectionUseCase {
	if notifier == nil {
		notifier = NoopNotifier
	}
	return &ConnectionUseCase{
		connectionRepo: connectionRepo,
		userRepo:       userRepo,
		messages:       messages,
		notifier:       notifier,
		limiter:        limiter,
	}
}

type CreateConnectionInput struct {
	RecipientID string
	Message     string
}

type RespondConnectionInput struct {
	ConnectionID string
	Status       entity.ConnectionStatus
}

// ConnectionEvent is the payload of connection-request and
// connection-response events. Message is the note or system message stored
// with the change, when there is one.
type ConnectionEvent struct {
	Connection *entity.Connection `json:"connection"`
	Message    *entity.Message    `json:"message,omitempty"`
}

func (uc *ConnectionUseCase) CreateRequest(ctx context.Context, requester entity.Identity, input CreateConnectionInput) (*entity.Connection, error) {
	if input.RecipientID == "" {
		return nil, errors.Validation("recipient_id is required")
	}
	if input.RecipientID == requester.UserID {
		return nil, errors.SelfConnection()
	}

	if err := checkLimit(uc.limiter, requester.UserID, ratelimit.ActionConnectionRequest); err != nil {
		return nil, err
	}

	recipientRole, err := uc.userRepo.RoleOf(ctx, input.RecipientID)
	if err != nil {
		return nil, err
	}
	// a pair that stays gated even once accepted cannot connect
	if decision := service.CanSend(requester.Role, recipientRole, entity.ConnectionAccepted); !decision.Allowed {
		return nil, decision.Err()
	}

	note := strings.TrimSpace(input.Message)
	connection := &entity.Connection{
		RequesterID:    requester.UserID,
		RecipientID:    input.RecipientID,
		RequesterRole:  requester.Role,
		RecipientRole:  recipientRole,
		Status:         entity.ConnectionPending,
		InitialMessage: note,
	}
	if err := uc.connectionRepo.Create(context.WithoutCancel(ctx), connection); err != nil {
		return nil, err
	}

	logger.Infow("connection requested",
		"connection", connection.ID, "requester", requester.UserID, "recipient", input.RecipientID)

	event := ConnectionEvent{Connection: connection}
	if note != "" {
		message := &entity.Message{
			ConversationID: entity.ConversationID(requester.UserID, input.RecipientID),
			SenderID:       requester.UserID,
			RecipientID:    input.RecipientID,
			SenderRole:     requester.Role,
			RecipientRole:  recipientRole,
			Content:        note,
			MessageType:    entity.MessageTypeConnectionRequest,
			ConnectionID:   connection.ID,
		}
		// The connection already exists; a lost note is logged, not returned.
		if err := uc.messages.record(ctx, message); err != nil {
			logger.Error("Failed to store note of connection %s: %v", connection.ID, err)
		} else {
			event.Message = message
		}
	}

	uc.notifier.Notify(input.RecipientID, entity.EventConnectionRequest, event)
	return connection, nil
}

// Respond lets the recipient accept or reject a pending request. Answering
// an already answered request returns it unchanged and notifies no one.
func (uc *ConnectionUseCase) Respond(ctx context.Context, responder entity.Identity, input RespondConnectionInput) (*entity.Connection, error) {
	if input.ConnectionID == "" {
		return nil, errors.Validation("connection_id is required")
	}
	if !input.Status.IsTerminal() {
		return nil, errors.Validation("status must be one of: accepted rejected")
	}

	existing, err := uc.connectionRepo.GetByID(ctx, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	if existing.RecipientID != responder.UserID {
		return nil, errors.Forbidden("Only the recipient can respond to this connection request", nil)
	}

	connection, changed, err := uc.connectionRepo.Respond(context.WithoutCancel(ctx), input.ConnectionID, input.Status, time.Now())
	if err != nil {
		return nil, err
	}
	if !changed {
		logger.Debug("Connection %s already %s, ignoring response %s", connection.ID, connection.Status, input.Status)
		return connection, nil
	}

	logger.Infow("connection answered", "connection", connection.ID, "status", connection.Status)

	message := &entity.Message{
		ConversationID: entity.ConversationID(connection.RecipientID, connection.RequesterID),
		SenderID:       connection.RecipientID,
		RecipientID:    connection.RequesterID,
		SenderRole:     connection.RecipientRole,
		RecipientRole:  connection.RequesterRole,
		Content:        systemText(connection.Status),
		MessageType:    entity.MessageTypeSystem,
		ConnectionID:   connection.ID,
	}
	event := ConnectionEvent{Connection: connection}
	if err := uc.messages.record(ctx, message); err != nil {
		logger.Error("Failed to store system message of connection %s: %v", connection.ID, err)
	} else {
		event.Message = message
	}

	uc.notifier.Notify(connection.RequesterID, entity.EventConnectionResponse, event)
	return connection, nil
}

func systemText(status entity.ConnectionStatus) string {
	if status == entity.ConnectionAccepted {
		return "Connection request accepted"
	}
	return "Connection request declined"
}

// StatusBetween returns the pair's connection, or nil when there is none.
func (uc *ConnectionUseCase) StatusBetween(ctx context.Context, userA, userB string) (*entity.Connection, error) {
	if userB == "" {
		return nil, errors.Validation("with is required")
	}
	return uc.connectionRepo.FindBetween(ctx, userA, userB)
}

func (uc *ConnectionUseCase) ListPending(ctx context.Context, userID string, asRecipient bool) ([]*entity.Connection, error) {
	connections, err := uc.connectionRepo.ListPending(ctx, userID, asRecipient)
	if err != nil {
		return nil, err
	}
	if connections == nil {
		connections = []*entity.Connection{}
	}
	return connections, nil
}

func (uc *ConnectionUseCase) ListAccepted(ctx context.Context, userID string) ([]*entity.Connection, error) {
	connections, err := uc.connectionRepo.ListAccepted(ctx, userID)
	if err != nil {
		return nil, err
	}
	if connections == nil {
		connections = []*entity.Connection{}
	}
	return connections, nil
}
