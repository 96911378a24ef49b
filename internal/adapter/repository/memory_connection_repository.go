package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

type memoryConnectionRepository struct {
	mutex  sync.RWMutex
	byID   map[string]*entity.Connection
	byPair map[string]string
}

func NewMemoryConnectionRepository() repository.ConnectionRepository {
	return &memoryConnectionRepository{
		byID:   make(map[string]*entity.Connection),
		byPair: make(map[string]string),
	}
}

func (r *memoryConnectionRepository) Create(ctx context.Context, connection *entity.Connection) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := entity.PairKey(connection.RequesterID, connection.RecipientID)
	if id, exists := r.byPair[key]; exists {
		return errors.DuplicateConnection(string(r.byID[id].Status))
	}

	if connection.ID == "" {
		connection.ID = uuid.New().String()
	}
	now := time.Now()
	connection.PairKey = key
	connection.CreatedAt = now
	connection.UpdatedAt = now

	r.byID[connection.ID] = cloneConnection(connection)
	r.byPair[key] = connection.ID
	return nil
}

func (r *memoryConnectionRepository) GetByID(ctx context.Context, id string) (*entity.Connection, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	conn, ok := r.byID[id]
	if !ok {
		return nil, errors.NotFound("Connection", nil)
	}
	return cloneConnection(conn), nil
}

func (r *memoryConnectionRepository) FindBetween(ctx context.Context, userA, userB string) (*entity.Connection, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, ok := r.byPair[entity.PairKey(userA, userB)]
	if !ok {
		return nil, nil
	}
	return cloneConnection(r.byID[id]), nil
}

func (r *memoryConnectionRepository) Respond(ctx context.Context, id string, status entity.ConnectionStatus, at time.Time) (*entity.Connection, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conn, ok := r.byID[id]
	if !ok {
		return nil, false, errors.NotFound("Connection", nil)
	}
	changed := conn.Transition(status, at)
	return cloneConnection(conn), changed, nil
}

func (r *memoryConnectionRepository) ListPending(ctx context.Context, userID string, asRecipient bool) ([]*entity.Connection, error) {
	return r.filter(func(c *entity.Connection) bool {
		if c.Status != entity.ConnectionPending {
			return false
		}
		if asRecipient {
			return c.RecipientID == userID
		}
		return c.RequesterID == userID
	}), nil
}

func (r *memoryConnectionRepository) ListAccepted(ctx context.Context, userID string) ([]*entity.Connection, error) {
	return r.filter(func(c *entity.Connection) bool {
		return c.Status == entity.ConnectionAccepted && c.Involves(userID)
	}), nil
}

func (r *memoryConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Connection, error) {
	return r.filter(func(c *entity.Connection) bool {
		return c.Involves(userID)
	}), nil
}

func (r *memoryConnectionRepository) filter(keep func(*entity.Connection) bool) []*entity.Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []*entity.Connection
	for _, c := range r.byID {
		if keep(c) {
			out = append(out, cloneConnection(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneConnection(c *entity.Connection) *entity.Connection {
	cp := *c
	if c.AcceptedAt != nil {
		t := *c.AcceptedAt
		cp.AcceptedAt = &t
	}
	if c.RejectedAt != nil {
		t := *c.RejectedAt
		cp.RejectedAt = &t
	}
	return &cp
}
