package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
)

type MessageRepository interface {
	CreatePending(roomID, authorID int, content string) (*models.Message, error)
	// SetStatus applies the one-way pending -> approved|rejected transition.
	// It fails with ErrInvalidTransition unless the message is currently
	// pending, which makes duplicate moderation completions harmless.
	SetStatus(id string, status models.MessageStatus) error
	Get(id string) (*models.Message, error)
	ListApproved(roomID, limit int) ([]models.Message, error)
}

type InMemoryMessageRepo struct {
	mu   sync.RWMutex
	data map[string]*models.Message
	byR  map[int][]string // room -> message ids in creation order
}

func NewInMemoryMessageRepo() *InMemoryMessageRepo {
	return &InMemoryMessageRepo{
		data: make(map[string]*models.Message),
		byR:  make(map[int][]string),
	}
}

func (r *InMemoryMessageRepo) CreatePending(roomID, authorID int, content string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	msg := &models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   content,
		Status:    models.MessageStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.data[msg.ID] = msg
	r.byR[roomID] = append(r.byR[roomID], msg.ID)
	copied := *msg
	return &copied, nil
}

func (r *InMemoryMessageRepo) SetStatus(id string, status models.MessageStatus) error {
	if status != models.MessageStatusApproved && status != models.MessageStatusRejected {
		return ErrInvalidTransition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Status != models.MessageStatusPending {
		return ErrInvalidTransition
	}
	msg.Status = status
	msg.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryMessageRepo) Get(id string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (r *InMemoryMessageRepo) ListApproved(roomID, limit int) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var msgs []models.Message
	for _, id := range r.byR[roomID] {
		if m := r.data[id]; m.Status == models.MessageStatusApproved {
			msgs = append(msgs, *m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
