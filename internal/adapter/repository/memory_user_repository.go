package repository

import (
	"context"
	"sync"
	"time"

	"campuslink/internal/domain/entity"
	"campuslink/pkg/errors"
)

// MemoryUserRepository is a directory held in memory. It is exported so dev
// setups and tests can seed users.
type MemoryUserRepository struct {
	mutex sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]*entity.User),
	}
}

// Put adds or replaces a user.
func (r *MemoryUserRepository) Put(id string, role entity.Role) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.users[id] = &entity.User{ID: id, Role: role, CreatedAt: time.Now()}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepository) RoleOf(ctx context.Context, id string) (entity.Role, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
