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

type mongoConnectionRepository struct {
	collection *mongo.Collection
}

func NewMongoConnectionRepository(db *mongo.Database) repository.ConnectionRepository {
	return &mongoConnectionRepository{collection: db.Collection(connectionsCollection)}
}

func (r *mongoConnectionRepository) Create(ctx context.Context, connection *entity.Connection) error {
	if connection.ID == "" {
		connection.ID = uuid.New().String()
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	connection.PairKey = entity.PairKey(connection.RequesterID, connection.RecipientID)
	connection.CreatedAt = now
	connection.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, connection)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return errors.Internal("Failed to create connection", err)
	}

	existing, findErr := r.FindBetween(ctx, connection.RequesterID, connection.RecipientID)
	if findErr != nil || existing == nil {
		return errors.DuplicateConnection(string(entity.ConnectionPending))
	}
	return errors.DuplicateConnection(string(existing.Status))
}

func (r *mongoConnectionRepository) GetByID(ctx context.Context, id string) (*entity.Connection, error) {
	var connection entity.Connection
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&connection)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("Connection", err)
		}
		return nil, errors.Internal("Failed to get connection", err)
	}
	return &connection, nil
}

func (r *mongoConnectionRepository) FindBetween(ctx context.Context, userA, userB string) (*entity.Connection, error) {
	var connection entity.Connection
	err := r.collection.FindOne(ctx, bson.M{"pairKey": entity.PairKey(userA, userB)}).Decode(&connection)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Internal("Failed to query connection", err)
	}
	return &connection, nil
}

func (r *mongoConnectionRepository) Respond(ctx context.Context, id string, status entity.ConnectionStatus, at time.Time) (*entity.Connection, bool, error) {
	set := bson.M{"status": status, "updatedAt": at}
	switch status {
	case entity.ConnectionAccepted:
		set["acceptedAt"] = at
	case entity.ConnectionRejected:
		set["rejectedAt"] = at
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": entity.ConnectionPending}

	var connection entity.Connection
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&connection)
	if err == nil {
		return &connection, true, nil
	}
	if !stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, errors.Internal("Failed to update connection", err)
	}

	// Either missing or already terminal.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *mongoConnectionRepository) ListPending(ctx context.Context, userID string, asRecipient bool) ([]*entity.Connection, error) {
	field := "requesterId"
	if asRecipient {
		field = "recipientId"
	}
	return r.find(ctx, bson.M{field: userID, "status": entity.ConnectionPending})
}

func (r *mongoConnectionRepository) ListAccepted(ctx context.Context, userID string) ([]*entity.Connection, error) {
	return r.find(ctx, bson.M{
		"status": entity.ConnectionAccepted,
		"$or":    bson.A{bson.M{"requesterId": userID}, bson.M{"recipientId": userID}},
	})
}

func (r *mongoConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Connection, error) {
	return r.find(ctx, bson.M{
		"$or": bson.A{bson.M{"requesterId": userID}, bson.M{"recipientId": userID}},
	})
}

func (r *mongoConnectionRepository) find(ctx context.Context, filter bson.M) ([]*entity.Connection, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, errors.Internal("Failed to list connections", err)
	}
	defer cursor.Close(ctx)

	var connections []*entity.Connection
	if err := cursor.All(ctx, &connections); err != nil {
		return nil, errors.Internal("Failed to parse connection data", err)
	}
	return connections, nil
}
