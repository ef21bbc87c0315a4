package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventRecord is one processed webhook event, retained for audit and replay.
type EventRecord struct {
	ID        string
	BookingID string
	EventID   string // gateway event id, globally unique
	Status    string // raw gateway event type
	Payload   []byte
	CreatedAt time.Time
}

// EventLedger is the append-only record of inbound gateway events. It is the
// sole safeguard against the gateway's at-least-once delivery re-triggering a
// side effect for the same event id.
type EventLedger interface {
	// RecordEvent appends an event to the ledger. A uniqueness violation on
	// the event id means the event was already processed and is reported as
	// (true, nil); any other failure propagates.
	RecordEvent(ctx context.Context, eventID, bookingID, status string, payload []byte) (duplicate bool, err error)
}

// InMemoryEventLedger implements EventLedger with in-memory storage.
// Used for testing and development.
type InMemoryEventLedger struct {
	mu     sync.Mutex
	events map[string]*EventRecord // event id -> record
}

// NewInMemoryEventLedger creates a new in-memory event ledger.
func NewInMemoryEventLedger() *InMemoryEventLedger {
	return &InMemoryEventLedger{events: make(map[string]*EventRecord)}
}

// RecordEvent appends an event, reporting true for an already-recorded id.
func (l *InMemoryEventLedger) RecordEvent(ctx context.Context, eventID, bookingID, status string, payload []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.events[eventID]; exists {
		return true, nil
	}
	l.events[eventID] = &EventRecord{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		EventID:   eventID,
		Status:    status,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	return false, nil
}

// Events returns all recorded events for a booking, oldest first.
func (l *InMemoryEventLedger) Events(bookingID string) []*EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*EventRecord
	for _, e := range l.events {
		if e.BookingID == bookingID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out
}

// uniqueViolation is the Postgres error code raised on a unique index conflict.
const uniqueViolation = "23505"

// PostgresEventLedger implements EventLedger on the booking_payment_events
// table, whose unique index on event_id turns a duplicate delivery into a
// constraint violation rather than a second row.
type PostgresEventLedger struct {
	db *sql.DB
}

// NewPostgresEventLedger creates a Postgres-backed event ledger.
func NewPostgresEventLedger(db *sql.DB) *PostgresEventLedger {
	return &PostgresEventLedger{db: db}
}

// RecordEvent inserts the event row, reading a unique violation as "already
// processed".
func (l *PostgresEventLedger) RecordEvent(ctx context.Context, eventID, bookingID, status string, payload []byte) (bool, error) {
	const query = `
		INSERT INTO booking_payment_events (id, booking_id, event_id, status, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := l.db.ExecContext(ctx, query, uuid.New().String(), bookingID, eventID, status, payload)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return true, nil
		}
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}
	return false, nil
}
