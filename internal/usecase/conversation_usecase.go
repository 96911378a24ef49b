package usecase

import (
	"context"
	"time"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/internal/domain/service"
	"campuslink/pkg/logger"
)

type ConversationUseCase struct {
	conversationRepo repository.ConversationRepository
	connectionRepo   repository.ConnectionRepository
	userRepo         repository.UserRepository
}

func NewConversationUseCase(
	conversationRepo repository.ConversationRepository,
	connectionRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
) *ConversationUseCase {
	return &ConversationUseCase{
		conversationRepo: conversationRepo,
		connectionRepo:   connectionRepo,
		userRepo:         userRepo,
	}
}

// ConversationView is one row of a user's inbox.
type ConversationView struct {
	*entity.Conversation
	OtherUserID   string      `json:"other_user_id"`
	OtherUserRole entity.Role `json:"other_user_role"`
	Unread        int         `json:"unread"`
}

// UpsertFromMessage folds a stored message into its pair's rollup.
func (uc *ConversationUseCase) UpsertFromMessage(ctx context.Context, message *entity.Message) (*entity.Conversation, error) {
	return uc.conversationRepo.Upsert(ctx, message)
}

// ResetUnread clears readerID's unread balance on the conversation.
func (uc *ConversationUseCase) ResetUnread(ctx context.Context, conversationID, readerID string, at time.Time) (*entity.Conversation, bool, error) {
	return uc.conversationRepo.ResetUnread(ctx, conversationID, readerID, at)
}

// List returns the viewer's conversations, newest first, hiding the ones the
// viewer's role may not see.
func (uc *ConversationUseCase) List(ctx context.Context, viewer entity.Identity) ([]*ConversationView, error) {
	conversations, err := uc.conversationRepo.ListByUser(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}

	var connectionsByPeer map[string]*entity.Connection
	if viewer.Role == entity.RoleStudent {
		connections, err := uc.connectionRepo.ListByUser(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		connectionsByPeer = make(map[string]*entity.Connection, len(connections))
		for _, c := range connections {
			peer := c.RecipientID
			if peer == viewer.UserID {
				peer = c.RequesterID
			}
			connectionsByPeer[peer] = c
		}
	}

	views := make([]*ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		other := conv.OtherParticipant(viewer.UserID)
		otherRole := conv.RoleOf(other)
		if !otherRole.IsValid() {
			otherRole, err = uc.userRepo.RoleOf(ctx, other)
			if err != nil {
				logger.Warn("Skipping conversation %s: cannot resolve role of %s: %v", conv.ID, other, err)
				continue
			}
		}

		if !service.CanView(viewer.UserID, viewer.Role, otherRole, connectionsByPeer[other]) {
			continue
		}

		views = append(views, &ConversationView{
			Conversation:  conv,
			OtherUserID:   other,
			OtherUserRole: otherRole,
			Unread:        conv.UnreadCountFor(viewer.UserID),
		})
	}

	return views, nil
}
