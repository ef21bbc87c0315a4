package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed booking repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const bookingColumns = `
	id, conversation_id, customer_id, tutor_id, title, description,
	scheduled_start, scheduled_end, session_length_minutes, hourly_rate,
	total_amount, status, location, meeting_link, special_instructions,
	payment_intent_id, payment_status, payment_amount_cents, payment_currency,
	payment_version, last_payment_event_at, last_payment_error,
	created_at, updated_at
`

func scanBooking(row interface{ Scan(...any) error }) (*Booking, error) {
	var (
		b             Booking
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&b.ID, &b.ConversationID, &b.CustomerID, &b.TutorID, &b.Title, &b.Description,
		&b.ScheduledStart, &b.ScheduledEnd, &b.SessionLengthMinutes, &b.HourlyRate,
		&b.TotalAmount, &status, &b.Location, &b.MeetingLink, &b.SpecialInstructions,
		&b.PaymentIntentID, &paymentStatus, &b.PaymentAmountCents, &b.PaymentCurrency,
		&b.PaymentVersion, &b.LastPaymentEventAt, &b.LastPaymentError,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(paymentStatus)
	return &b, nil
}

// Insert stores a new booking, assigning an id if absent.
func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	const query = `
		INSERT INTO bookings (
			id, conversation_id, customer_id, tutor_id, title, description,
			scheduled_start, scheduled_end, session_length_minutes, hourly_rate,
			total_amount, status, location, meeting_link, special_instructions,
			payment_intent_id, payment_status, payment_amount_cents,
			payment_currency, payment_version, last_payment_error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		b.ID, b.ConversationID, b.CustomerID, b.TutorID, b.Title, b.Description,
		b.ScheduledStart, b.ScheduledEnd, b.SessionLengthMinutes, b.HourlyRate,
		b.TotalAmount, string(b.Status), b.Location, b.MeetingLink, b.SpecialInstructions,
		b.PaymentIntentID, string(b.PaymentStatus), b.PaymentAmountCents,
		b.PaymentCurrency, b.PaymentVersion, b.LastPaymentError,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// Update replaces the stored booking's mutable fields.
func (r *PostgresRepository) Update(ctx context.Context, b *Booking) error {
	const query = `
		UPDATE bookings SET
			title = $2, description = $3, scheduled_start = $4, scheduled_end = $5,
			session_length_minutes = $6, hourly_rate = $7, total_amount = $8,
			status = $9, location = $10, meeting_link = $11,
			special_instructions = $12, payment_intent_id = $13,
			payment_status = $14, payment_amount_cents = $15,
			payment_currency = $16, payment_version = $17,
			last_payment_event_at = $18, last_payment_error = $19,
			updated_at = now()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.Title, b.Description, b.ScheduledStart, b.ScheduledEnd,
		b.SessionLengthMinutes, b.HourlyRate, b.TotalAmount,
		string(b.Status), b.Location, b.MeetingLink,
		b.SpecialInstructions, b.PaymentIntentID,
		string(b.PaymentStatus), b.PaymentAmountCents,
		b.PaymentCurrency, b.PaymentVersion,
		b.LastPaymentEventAt, b.LastPaymentError,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a booking.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByConversation returns a conversation's bookings, newest first.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE conversation_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return out, nil
}

// ApplyPaymentEvent applies a webhook-computed delta to the booking row.
// The conditional WHERE clause is the fencing device: a row is only updated
// when the stored last_payment_event_at is absent or not newer than the
// incoming event, so a stale re-ordered event cannot regress the status.
// The intent id and currency carried on the event are adopted when present.
func (r *PostgresRepository) ApplyPaymentEvent(ctx context.Context, bookingID string, update PaymentEventUpdate) (bool, error) {
	const query = `
		UPDATE bookings SET
			payment_status = $2,
			last_payment_error = $3,
			payment_intent_id = COALESCE(NULLIF($4, ''), payment_intent_id),
			payment_currency = COALESCE(NULLIF($5, ''), payment_currency),
			last_payment_event_at = $6,
			updated_at = now()
		WHERE id = $1
		  AND (last_payment_event_at IS NULL OR last_payment_event_at <= $6)
	`
	result, err := r.db.ExecContext(ctx, query,
		bookingID, string(update.Status), update.LastPaymentError,
		update.PaymentIntentID, update.Currency, update.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply payment event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read payment event result: %w", err)
	}
	return rows > 0, nil
}
