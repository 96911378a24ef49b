package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/api/iterator"

	"campuslink/internal/domain/repository"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users         repository.UserRepository
	Connections   repository.ConnectionRepository
	Messages      repository.MessageRepository
	Conversations repository.ConversationRepository

	ping func(ctx context.Context) error
}

// Ping reports whether the backend answers. The memory store always does.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func NewMemoryStore(users *MemoryUserRepository) *Store {
	if users == nil {
		users = NewMemoryUserRepository()
	}
	return &Store{
		Users:         users,
		Connections:   NewMemoryConnectionRepository(),
		Messages:      NewMemoryMessageRepository(),
		Conversations: NewMemoryConversationRepository(),
	}
}

func NewFirestoreStore(client *firestore.Client) *Store {
	return &Store{
		Users:         NewFirestoreUserRepository(client),
		Connections:   NewFirestoreConnectionRepository(client),
		Messages:      NewFirestoreMessageRepository(client),
		Conversations: NewFirestoreConversationRepository(client),
		ping: func(ctx context.Context) error {
			_, err := client.Collection(usersCollection).Limit(1).Documents(ctx).Next()
			if err == iterator.Done {
				return nil
			}
			return err
		},
	}
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		Users:         NewMongoUserRepository(db),
		Connections:   NewMongoConnectionRepository(db),
		Messages:      NewMongoMessageRepository(db),
		Conversations: NewMongoConversationRepository(db),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
	}
}
