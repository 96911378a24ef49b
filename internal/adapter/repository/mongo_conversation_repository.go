package repository

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

type mongoConversationRepository struct {
	collection *mongo.Collection
}

func NewMongoConversationRepository(db *mongo.Database) repository.ConversationRepository {
	return &mongoConversationRepository{collection: db.Collection(conversationsCollection)}
}

// Upsert runs as one pipeline update on a single document, so the server
// applies the unread rule against the stored unreadFor without a read first.
// The preview only moves forward in time.
func (r *mongoConversationRepository) Upsert(ctx context.Context, message *entity.Message) (*entity.Conversation, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	seed := entity.NewConversation(message, now)

	// fields of one $set stage all read the stored document
	newer := bson.M{"$gte": bson.A{seed.LastMessageAt, bson.M{"$ifNull": bson.A{"$lastMessageAt", time.Time{}}}}}
	latest := func(field string, value interface{}) bson.M {
		return bson.M{"$cond": bson.A{newer, value, "$" + field}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "participants", Value: bson.M{"$ifNull": bson.A{"$participants", bson.M{"$literal": seed.Participants}}}},
			{Key: "participantRoles", Value: bson.M{"$ifNull": bson.A{"$participantRoles", bson.M{"$literal": seed.ParticipantRoles}}}},
			{Key: "createdAt", Value: bson.M{"$ifNull": bson.A{"$createdAt", now}}},
			{Key: "lastMessage", Value: latest("lastMessage", bson.M{"$literal": seed.LastMessage})},
			{Key: "lastMessageId", Value: latest("lastMessageId", bson.M{"$literal": seed.LastMessageID})},
			{Key: "lastSenderId", Value: latest("lastSenderId", seed.LastSenderID)},
			{Key: "lastMessageAt", Value: latest("lastMessageAt", seed.LastMessageAt)},
			{Key: "updatedAt", Value: now},
			{Key: "unreadCount", Value: bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$unreadFor", message.RecipientID}},
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$unreadCount", 0}}, 1}},
				1,
			}}},
			{Key: "unreadFor", Value: message.RecipientID},
		}}},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv entity.Conversation
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": seed.ID}, pipeline, opts).Decode(&conv)
	if err != nil {
		return nil, errors.Internal("Failed to update conversation", err)
	}
	return &conv, nil
}

func (r *mongoConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}
	return &conv, nil
}

func (r *mongoConversationRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"participants": userID}, findOptions)
	if err != nil {
		return nil, errors.Internal("Failed to list conversations", err)
	}
	defer cursor.Close(ctx)

	var conversations []*entity.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	return conversations, nil
}

func (r *mongoConversationRepository) ResetUnread(ctx context.Context, id, readerID string, at time.Time) (*entity.Conversation, bool, error) {
	filter := bson.M{"_id": id, "unreadFor": readerID}
	update := bson.M{"$set": bson.M{"unreadCount": 0, "unreadFor": "", "updatedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv entity.Conversation
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err == nil {
		return &conv, true, nil
	}
	if !stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, errors.Internal("Failed to reset unread count", err)
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return existing, false, nil
}
