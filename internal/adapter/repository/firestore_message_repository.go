package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
	"campuslink/pkg/logger"
)

const messagesCollection = "messages"

type firestoreMessageRepository struct {
	client *firestore.Client
}

// NewFirestoreMessageRepository keeps messages in one top-level collection
// keyed by message id and filtered by conversationId.
func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.UpdatedAt = message.CreatedAt

	_, err := r.client.Collection(messagesCollection).Doc(message.ID).Create(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.client.Collection(messagesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) History(ctx context.Context, conversationID string, q entity.HistoryQuery) ([]*entity.Message, bool, error) {
	query := r.client.Collection(messagesCollection).Where("conversationId", "==", conversationID)

	forward := q.After != nil
	if forward {
		query = query.OrderBy("createdAt", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc).
			StartAfter(q.After.CreatedAt, q.After.ID)
	} else {
		query = query.OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if q.Before != nil {
			query = query.StartAfter(q.Before.CreatedAt, q.Before.ID)
		}
	}
	// One extra row tells whether another page exists.
	query = query.Limit(q.Limit + 1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, false, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, false, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}

	more := len(messages) > q.Limit
	if more {
		messages = messages[:q.Limit]
	}
	if !forward {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, more, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, id, readerID string, at time.Time) (*entity.Message, bool, error) {
	ref := r.client.Collection(messagesCollection).Doc(id)

	var result entity.Message
	var changed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Message", err)
			}
			return err
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return errors.Internal("Failed to parse message data", err)
		}

		result = message
		changed = false
		if message.RecipientID != readerID || message.IsRead {
			return nil
		}

		readAt := at
		result.IsRead = true
		result.ReadAt = &readAt
		result.UpdatedAt = at
		changed = true
		return tx.Update(ref, []firestore.Update{
			{Path: "isRead", Value: true},
			{Path: "readAt", Value: at},
			{Path: "updatedAt", Value: at},
		})
	})
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) || errors.Is(err, errors.CodeInternal) {
			return nil, false, err
		}
		return nil, false, errors.Internal("Failed to update message read status", err)
	}

	return &result, changed, nil
}

func (r *firestoreMessageRepository) MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	docs, err := r.client.Collection(messagesCollection).
		Where("conversationId", "==", conversationID).
		Where("recipientId", "==", readerID).
		Where("isRead", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to query unread messages", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Update(doc.Ref, []firestore.Update{
			{Path: "isRead", Value: true},
			{Path: "readAt", Value: at},
			{Path: "updatedAt", Value: at},
		})
		if err != nil {
			bw.End()
			return 0, errors.Internal("Failed to queue read update", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	count := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			logger.Warn("Failed to mark message read in conversation %s: %v", conversationID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(messagesCollection).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}
