package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaymentEventUpdate is the persisted delta computed for one webhook event.
// It is applied keyed by booking id only, never derived from a prior
// in-memory read of the booking.
type PaymentEventUpdate struct {
	Status           PaymentStatus
	LastPaymentError *string
	PaymentIntentID  string // adopted when non-empty
	Currency         string // adopted when non-empty
	OccurredAt       time.Time
}

// Repository defines booking data operations. All writes are scoped by the
// booking's primary id.
type Repository interface {
	// Insert stores a new booking, assigning an id if absent.
	Insert(ctx context.Context, b *Booking) error

	// GetByID retrieves a booking by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*Booking, error)

	// Update replaces the stored booking's mutable fields.
	Update(ctx context.Context, b *Booking) error

	// Delete removes a booking. Only used as the compensating step when
	// checkout-session creation fails immediately after insert.
	Delete(ctx context.Context, id string) error

	// ListByConversation returns a conversation's bookings, newest first.
	ListByConversation(ctx context.Context, conversationID string) ([]*Booking, error)

	// ApplyPaymentEvent applies a webhook-computed delta to the booking.
	// The write is fenced by the event timestamp: an event older than the
	// stored last_payment_event_at does not regress the booking. Returns
	// false when nothing was updated (unknown booking or stale event).
	ApplyPaymentEvent(ctx context.Context, bookingID string, update PaymentEventUpdate) (bool, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used for testing and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
}

// NewInMemoryRepository creates a new in-memory booking repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bookings: make(map[string]*Booking)}
}

// Insert stores a new booking.
func (r *InMemoryRepository) Insert(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	r.bookings[b.ID] = b.Clone()
	return nil
}

// GetByID retrieves a booking by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

// Update replaces the stored booking's mutable fields.
func (r *InMemoryRepository) Update(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now()
	r.bookings[b.ID] = b.Clone()
	return nil
}

// Delete removes a booking.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

// ListByConversation returns a conversation's bookings, newest first.
func (r *InMemoryRepository) ListByConversation(ctx context.Context, conversationID string) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, b := range r.bookings {
		if b.ConversationID == conversationID {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ApplyPaymentEvent applies a webhook-computed delta, fenced by event timestamp.
func (r *InMemoryRepository) ApplyPaymentEvent(ctx context.Context, bookingID string, update PaymentEventUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[bookingID]
	if !ok {
		return false, nil
	}
	if b.LastPaymentEventAt != nil && b.LastPaymentEventAt.After(update.OccurredAt) {
		return false, nil
	}

	b.PaymentStatus = update.Status
	b.LastPaymentError = nil
	if update.LastPaymentError != nil {
		v := *update.LastPaymentError
		b.LastPaymentError = &v
	}
	if update.PaymentIntentID != "" {
		v := update.PaymentIntentID
		b.PaymentIntentID = &v
	}
	if update.Currency != "" {
		b.PaymentCurrency = update.Currency
	}
	occurred := update.OccurredAt
	b.LastPaymentEventAt = &occurred
	b.UpdatedAt = time.Now()
	return true, nil
}
