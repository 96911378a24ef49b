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

type memoryMessageRepository struct {
	mutex          sync.RWMutex
	byID           map[string]*entity.Message
	byConversation map[string][]string
}

func NewMemoryMessageRepository() repository.MessageRepository {
	return &memoryMessageRepository{
		byID:           make(map[string]*entity.Message),
		byConversation: make(map[string][]string),
	}
}

func (r *memoryMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.UpdatedAt = message.CreatedAt

	r.byID[message.ID] = cloneMessage(message)
	r.byConversation[message.ConversationID] = append(r.byConversation[message.ConversationID], message.ID)
	return nil
}

func (r *memoryMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	msg, ok := r.byID[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return cloneMessage(msg), nil
}

func (r *memoryMessageRepository) History(ctx context.Context, conversationID string, q entity.HistoryQuery) ([]*entity.Message, bool, error) {
	r.mutex.RLock()
	all := make([]*entity.Message, 0, len(r.byConversation[conversationID]))
	for _, id := range r.byConversation[conversationID] {
		if msg, ok := r.byID[id]; ok {
			all = append(all, cloneMessage(msg))
		}
	}
	r.mutex.RUnlock()

	sort.Slice(all, func(i, j int) bool { return entity.LessMessage(all[i], all[j]) })

	if q.After != nil {
		var window []*entity.Message
		for _, m := range all {
			if q.After.After(m) {
				window = append(window, m)
			}
		}
		if len(window) > q.Limit {
			return window[:q.Limit], true, nil
		}
		return window, false, nil
	}

	window := all
	if q.Before != nil {
		window = window[:0:0]
		for _, m := range all {
			if q.Before.Before(m) {
				window = append(window, m)
			}
		}
	}
	if len(window) > q.Limit {
		return window[len(window)-q.Limit:], true, nil
	}
	return window, false, nil
}

func (r *memoryMessageRepository) MarkRead(ctx context.Context, id, readerID string, at time.Time) (*entity.Message, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	msg, ok := r.byID[id]
	if !ok {
		return nil, false, errors.NotFound("Message", nil)
	}
	if msg.RecipientID != readerID || msg.IsRead {
		return cloneMessage(msg), false, nil
	}

	readAt := at
	msg.IsRead = true
	msg.ReadAt = &readAt
	msg.UpdatedAt = at
	return cloneMessage(msg), true, nil
}

func (r *memoryMessageRepository) MarkAllRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := 0
	for _, id := range r.byConversation[conversationID] {
		msg, ok := r.byID[id]
		if !ok || msg.RecipientID != readerID || msg.IsRead {
			continue
		}
		readAt := at
		msg.IsRead = true
		msg.ReadAt = &readAt
		msg.UpdatedAt = at
		count++
	}
	return count, nil
}

func (r *memoryMessageRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	msg, ok := r.byID[id]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	delete(r.byID, id)

	ids := r.byConversation[msg.ConversationID]
	for i, existing := range ids {
		if existing == id {
			r.byConversation[msg.ConversationID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func cloneMessage(m *entity.Message) *entity.Message {
	cp := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		cp.ReadAt = &t
	}
	if m.Attachment != nil {
		a := *m.Attachment
		cp.Attachment = &a
	}
	return &cp
}
