package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

type memoryConversationRepository struct {
	mutex sync.RWMutex
	byID  map[string]*entity.Conversation
}

func NewMemoryConversationRepository() repository.ConversationRepository {
	return &memoryConversationRepository{
		byID: make(map[string]*entity.Conversation),
	}
}

func (r *memoryConversationRepository) Upsert(ctx context.Context, message *entity.Message) (*entity.Conversation, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	id := entity.ConversationID(message.SenderID, message.RecipientID)

	conv, ok := r.byID[id]
	if !ok {
		conv = entity.NewConversation(message, now)
		r.byID[id] = conv
	} else {
		conv.Apply(message, now)
	}
	return cloneConversation(conv), nil
}

func (r *memoryConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	conv, ok := r.byID[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return cloneConversation(conv), nil
}

func (r *memoryConversationRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	r.mutex.RLock()
	var out []*entity.Conversation
	for _, conv := range r.byID {
		for _, p := range conv.Participants {
			if p == userID {
				out = append(out, cloneConversation(conv))
				break
			}
		}
	}
	r.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (r *memoryConversationRepository) ResetUnread(ctx context.Context, id, readerID string, at time.Time) (*entity.Conversation, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conv, ok := r.byID[id]
	if !ok {
		return nil, false, nil
	}
	changed := conv.ResetUnread(readerID, at)
	return cloneConversation(conv), changed, nil
}

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.ParticipantRoles = append([]entity.Role(nil), c.ParticipantRoles...)
	return &cp
}
