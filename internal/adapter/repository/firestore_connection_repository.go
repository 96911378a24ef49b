package repository

import (
	"context"
	"sort"
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

const connectionsCollection = "connections"

type firestoreConnectionRepository struct {
	client *firestore.Client
}

func NewFirestoreConnectionRepository(client *firestore.Client) repository.ConnectionRepository {
	return &firestoreConnectionRepository{
		client: client,
	}
}

func (r *firestoreConnectionRepository) Create(ctx context.Context, connection *entity.Connection) error {
	if connection.ID == "" {
		connection.ID = uuid.New().String()
	}

	now := time.Now()
	connection.PairKey = entity.PairKey(connection.RequesterID, connection.RecipientID)
	connection.CreatedAt = now
	connection.UpdatedAt = now

	col := r.client.Collection(connectionsCollection)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(col.Where("pairKey", "==", connection.PairKey).Limit(1))
		defer iter.Stop()

		doc, err := iter.Next()
		if err == nil {
			var existing entity.Connection
			if err := doc.DataTo(&existing); err != nil {
				return errors.Internal("Failed to parse connection data", err)
			}
			return errors.DuplicateConnection(string(existing.Status))
		}
		if err != iterator.Done {
			return err
		}

		return tx.Create(col.Doc(connection.ID), connection)
	})
	if err != nil {
		if errors.Is(err, errors.CodeDuplicateConnection) || errors.Is(err, errors.CodeInternal) {
			return err
		}
		return errors.Internal("Failed to create connection", err)
	}

	return nil
}

func (r *firestoreConnectionRepository) GetByID(ctx context.Context, id string) (*entity.Connection, error) {
	doc, err := r.client.Collection(connectionsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Connection", err)
		}
		return nil, errors.Internal("Failed to get connection", err)
	}

	var connection entity.Connection
	if err := doc.DataTo(&connection); err != nil {
		return nil, errors.Internal("Failed to parse connection data", err)
	}
	return &connection, nil
}

func (r *firestoreConnectionRepository) FindBetween(ctx context.Context, userA, userB string) (*entity.Connection, error) {
	query := r.client.Collection(connectionsCollection).Where("pairKey", "==", entity.PairKey(userA, userB)).Limit(1)
	iter := query.Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to query connection", err)
	}

	var connection entity.Connection
	if err := doc.DataTo(&connection); err != nil {
		return nil, errors.Internal("Failed to parse connection data", err)
	}
	return &connection, nil
}

func (r *firestoreConnectionRepository) Respond(ctx context.Context, id string, newStatus entity.ConnectionStatus, at time.Time) (*entity.Connection, bool, error) {
	ref := r.client.Collection(connectionsCollection).Doc(id)

	var result entity.Connection
	var changed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Connection", err)
			}
			return err
		}

		var connection entity.Connection
		if err := doc.DataTo(&connection); err != nil {
			return errors.Internal("Failed to parse connection data", err)
		}

		changed = connection.Transition(newStatus, at)
		result = connection
		if !changed {
			return nil
		}
		return tx.Set(ref, &connection)
	})
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) || errors.Is(err, errors.CodeInternal) {
			return nil, false, err
		}
		return nil, false, errors.Internal("Failed to update connection", err)
	}

	return &result, changed, nil
}

func (r *firestoreConnectionRepository) ListPending(ctx context.Context, userID string, asRecipient bool) ([]*entity.Connection, error) {
	field := "requesterId"
	if asRecipient {
		field = "recipientId"
	}
	query := r.client.Collection(connectionsCollection).
		Where(field, "==", userID).
		Where("status", "==", string(entity.ConnectionPending))

	return r.collect(ctx, query)
}

func (r *firestoreConnectionRepository) ListAccepted(ctx context.Context, userID string) ([]*entity.Connection, error) {
	col := r.client.Collection(connectionsCollection)
	accepted := string(entity.ConnectionAccepted)
	return r.collect(ctx,
		col.Where("requesterId", "==", userID).Where("status", "==", accepted),
		col.Where("recipientId", "==", userID).Where("status", "==", accepted),
	)
}

func (r *firestoreConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Connection, error) {
	col := r.client.Collection(connectionsCollection)
	return r.collect(ctx,
		col.Where("requesterId", "==", userID),
		col.Where("recipientId", "==", userID),
	)
}

// collect runs each query and merges the results newest first.
func (r *firestoreConnectionRepository) collect(ctx context.Context, queries ...firestore.Query) ([]*entity.Connection, error) {
	var connections []*entity.Connection
	seen := make(map[string]bool)

	for _, query := range queries {
		docs, err := query.Documents(ctx).GetAll()
		if err != nil {
			logger.Error("Firestore error while listing connections: %v", err)
			return nil, errors.Internal("Failed to list connections", err)
		}
		for _, doc := range docs {
			if seen[doc.Ref.ID] {
				continue
			}
			var connection entity.Connection
			if err := doc.DataTo(&connection); err != nil {
				logger.Warn("Error parsing connection %s: %v", doc.Ref.ID, err)
				continue
			}
			seen[doc.Ref.ID] = true
			connections = append(connections, &connection)
		}
	}

	sort.Slice(connections, func(i, j int) bool {
		return connections[i].CreatedAt.After(connections[j].CreatedAt)
	})
	return connections, nil
}
