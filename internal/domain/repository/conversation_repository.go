package repository

import (
	"context"
	"time"

	"campuslink/internal/domain/entity"
)

type ConversationRepository interface {
	// Upsert folds message into its pair's conversation as one atomic
	// read-modify-write; concurrent calls for the same pair never lose updates.
	Upsert(ctx context.Context, message *entity.Message) (*entity.Conversation, error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error)

	// ResetUnread zeroes the unread balance only when readerID owns it.
	// A missing conversation is not an error: it returns nil, false.
	ResetUnread(ctx context.Context, id, readerID string, at time.Time) (*entity.Conversation, bool, error)
}
