package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{collection: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var doc struct {
		ID       string `bson:"_id"`
		Role     string `bson:"role"`
		Username string `bson:"username"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	role, ok := entity.ParseRole(doc.Role)
	if !ok {
		return nil, errors.Internal(fmt.Sprintf("User %s has unknown role %q", id, doc.Role), nil)
	}
	return &entity.User{ID: doc.ID, Role: role, Username: doc.Username}, nil
}

func (r *mongoUserRepository) RoleOf(ctx context.Context, id string) (entity.Role, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
