package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
	"campuslink/pkg/logger"
)

const conversationsCollection = "conversations"

// upsertMaxAttempts covers bursts of sends within one pair, which all
// contend on the same document.
const upsertMaxAttempts = 25

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) Upsert(ctx context.Context, message *entity.Message) (*entity.Conversation, error) {
	ref := r.client.Collection(conversationsCollection).Doc(entity.ConversationID(message.SenderID, message.RecipientID))

	var result entity.Conversation
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now()

		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			result = *entity.NewConversation(message, now)
			return tx.Create(ref, &result)
		}

		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			return errors.Internal("Failed to parse conversation data", err)
		}
		conv.Apply(message, now)
		result = conv
		return tx.Set(ref, &conv)
	}, firestore.MaxAttempts(upsertMaxAttempts))
	if err != nil {
		if errors.Is(err, errors.CodeInternal) {
			return nil, err
		}
		return nil, errors.Internal("Failed to update conversation", err)
	}

	return &result, nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection(conversationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	return &conv, nil
}

func (r *firestoreConversationRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	query := r.client.Collection(conversationsCollection).
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageAt", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var conversations []*entity.Conversation
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while listing conversations for user %s: %v", userID, err)
			return nil, errors.Internal("Failed to list conversations", err)
		}

		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			logger.Warn("Error parsing conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		conversations = append(conversations, &conv)
	}

	return conversations, nil
}

func (r *firestoreConversationRepository) ResetUnread(ctx context.Context, id, readerID string, at time.Time) (*entity.Conversation, bool, error) {
	ref := r.client.Collection(conversationsCollection).Doc(id)

	var result *entity.Conversation
	var changed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result, changed = nil, false

		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			return errors.Internal("Failed to parse conversation data", err)
		}
		result = &conv
		if !conv.ResetUnread(readerID, at) {
			return nil
		}
		changed = true
		return tx.Update(ref, []firestore.Update{
			{Path: "unreadCount", Value: 0},
			{Path: "unreadFor", Value: ""},
			{Path: "updatedAt", Value: at},
		})
	})
	if err != nil {
		if errors.Is(err, errors.CodeInternal) {
			return nil, false, err
		}
		return nil, false, errors.Internal("Failed to reset unread count", err)
	}

	return result, changed, nil
}
