package repository

import (
	"context"

	"campuslink/internal/domain/entity"
)

// UserRepository is the directory lookup over the portal's user profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	RoleOf(ctx context.Context, id string) (entity.Role, error)
}
