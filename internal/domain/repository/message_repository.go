package repository

import (
	"context"
	"time"

	"campuslink/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)

	// History returns up to q.Limit messages of one conversation, oldest
	// first. more reports whether further messages exist beyond the page in
	// the direction of the query (older for Before or no cursor, newer for After).
	History(ctx context.Context, conversationID string, q entity.HistoryQuery) (messages []*entity.Message, more bool, err error)

	// MarkRead flips the message to read when readerID is its recipient and it
	// is still unread. changed is false for every no-op.
	MarkRead(ctx context.Context, id, readerID string, at time.Time) (message *entity.Message, changed bool, err error)

	// MarkAllRead flips every unread message addressed to readerID in the
	// conversation and returns how many changed.
	MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error)

	Delete(ctx context.Context, id string) error
}
