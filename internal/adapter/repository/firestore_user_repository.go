package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

const usersCollection = "users"

type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository reads roles from the portal's users collection.
// Profiles are written by the profile service, never here.
func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	user := &entity.User{ID: doc.Ref.ID, CreatedAt: doc.CreateTime}

	raw, err := doc.DataAt("role")
	if err != nil {
		return nil, errors.Internal("User has no role", err)
	}
	role, ok := entity.ParseRole(fmt.Sprint(raw))
	if !ok {
		return nil, errors.Internal(fmt.Sprintf("User %s has unknown role %v", id, raw), nil)
	}
	user.Role = role

	if username, err := doc.DataAt("username"); err == nil {
		if s, ok := username.(string); ok {
			user.Username = s
		}
	}

	return user, nil
}

func (r *firestoreUserRepository) RoleOf(ctx context.Context, id string) (entity.Role, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
