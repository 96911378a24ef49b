package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

type mongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) repository.MessageRepository {
	return &mongoMessageRepository{collection: db.Collection(messagesCollection)}
}

func (r *mongoMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	// BSON dates hold milliseconds; truncate so cursors built from the
	// returned message match what is stored.
	message.CreatedAt = message.CreatedAt.UTC().Truncate(time.Millisecond)
	message.UpdatedAt = message.CreatedAt

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *mongoMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	var message entity.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return &message, nil
}

func (r *mongoMessageRepository) History(ctx context.Context, conversationID string, q entity.HistoryQuery) ([]*entity.Message, bool, error) {
	filter := bson.M{"conversationId": conversationID}
	dir := -1

	switch {
	case q.After != nil:
		dir = 1
		filter["$or"] = cursorRange("$gt", *q.After)
	case q.Before != nil:
		filter["$or"] = cursorRange("$lt", *q.Before)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(q.Limit + 1))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, false, errors.Internal("Failed to query messages", err)
	}
	defer cursor.Close(ctx)

	var messages []*entity.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, false, errors.Internal("Failed to parse message data", err)
	}

	more := len(messages) > q.Limit
	if more {
		messages = messages[:q.Limit]
	}
	if dir < 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, more, nil
}

// cursorRange matches messages strictly on one side of c in (createdAt, _id) order.
func cursorRange(op string, c entity.Cursor) bson.A {
	return bson.A{
		bson.M{"createdAt": bson.M{op: c.CreatedAt}},
		bson.M{"createdAt": c.CreatedAt, "_id": bson.M{op: c.ID}},
	}
}

func (r *mongoMessageRepository) MarkRead(ctx context.Context, id, readerID string, at time.Time) (*entity.Message, bool, error) {
	filter := bson.M{"_id": id, "recipientId": readerID, "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": at, "updatedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var message entity.Message
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&message)
	if err == nil {
		return &message, true, nil
	}
	if !stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, errors.Internal("Failed to update message read status", err)
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *mongoMessageRepository) MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	filter := bson.M{"conversationId": conversationID, "recipientId": readerID, "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": at, "updatedAt": at}}

	res, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, errors.Internal("Failed to mark messages read", err)
	}
	return int(res.ModifiedCount), nil
}

func (r *mongoMessageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	if res.DeletedCount == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}
