// Package conversation provides lookup of the chat conversations that own
// bookings. Message storage and delivery live elsewhere; this package exists
// so booking commands can verify the two parties of a thread.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Conversation is a chat thread between exactly two users.
type Conversation struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.User1ID || userID == c.User2ID)
}

// Repository defines conversation data operations.
type Repository interface {
	// GetByID retrieves a conversation by id.
	GetByID(ctx context.Context, id string) (*Conversation, error)

	// FindOrCreate returns the existing conversation between the two users
	// in either order, creating one if none exists.
	FindOrCreate(ctx context.Context, user1ID, user2ID string) (*Conversation, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewInMemoryRepository creates a new in-memory conversation repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{conversations: make(map[string]*Conversation)}
}

// GetByID retrieves a conversation by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// FindOrCreate returns the conversation between the two users, creating it if absent.
func (r *InMemoryRepository) FindOrCreate(ctx context.Context, user1ID, user2ID string) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conversations {
		if (c.User1ID == user1ID && c.User2ID == user2ID) || (c.User1ID == user2ID && c.User2ID == user1ID) {
			copied := *c
			return &copied, nil
		}
	}

	now := time.Now()
	c := &Conversation{
		ID:        uuid.New().String(),
		User1ID:   user1ID,
		User2ID:   user2ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.conversations[c.ID] = c
	copied := *c
	return &copied, nil
}
