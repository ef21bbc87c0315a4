// Package booking provides the booking record, the booking-payment state
// machine, and the command service that keeps both consistent with the
// payment gateway.
package booking

import (
	"errors"
	"time"
)

// Status is the negotiation status of a booking.
type Status string

// Booking negotiation statuses.
const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusModified Status = "modified"
)

// PaymentStatus tracks where a booking's authorization cycle stands with the
// payment gateway. It evolves independently of Status but the two are jointly
// constrained: StatusAccepted is only ever written together with
// PaymentCaptured, after a successful capture call.
type PaymentStatus string

// Payment statuses.
const (
	PaymentRequiresPayment      PaymentStatus = "requires_payment"
	PaymentAuthorizationPending PaymentStatus = "authorization_pending"
	PaymentAuthorized           PaymentStatus = "authorized"
	PaymentCapturable           PaymentStatus = "capturable"
	PaymentCaptured             PaymentStatus = "captured"
	PaymentRefunding            PaymentStatus = "refunding"
	PaymentRefunded             PaymentStatus = "refunded"
	PaymentCanceled             PaymentStatus = "canceled"
)

// Common errors for booking operations. The messages double as the stable
// error tokens returned to API callers.
var (
	ErrNotFound                = errors.New("booking_not_found")
	ErrConversationNotFound    = errors.New("conversation_not_found")
	ErrForbidden               = errors.New("forbidden")
	ErrSameParty               = errors.New("customer and tutor must be distinct")
	ErrPaymentIntentMissing    = errors.New("payment_intent_missing")
	ErrPaymentNotAuthorizedYet = errors.New("payment_not_authorized_yet")
	ErrPaymentNotCapturable    = errors.New("payment_not_capturable")
	ErrPaymentCancelFailed     = errors.New("payment_cancel_failed")
	ErrPaymentRefundFailed     = errors.New("payment_refund_failed")
)

// Booking is one proposed paid session between a customer and a tutor inside
// a conversation. hourly_rate and total_amount are decimal strings; the
// gateway only ever sees payment_amount_cents.
type Booking struct {
	ID                   string        `json:"id"`
	ConversationID       string        `json:"conversation_id"`
	CustomerID           string        `json:"customer_id"`
	TutorID              string        `json:"tutor_id"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	ScheduledStart       time.Time     `json:"scheduled_start"`
	ScheduledEnd         time.Time     `json:"scheduled_end"`
	SessionLengthMinutes int           `json:"session_length_minutes"`
	HourlyRate           string        `json:"hourly_rate"`
	TotalAmount          string        `json:"total_amount"`
	Status               Status        `json:"status"`
	Location             string        `json:"location"`
	MeetingLink          string        `json:"meeting_link"`
	SpecialInstructions  string        `json:"special_instructions"`
	PaymentIntentID      *string       `json:"payment_intent_id,omitempty"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	PaymentAmountCents   int64         `json:"payment_amount_cents"`
	PaymentCurrency      string        `json:"payment_currency"`
	PaymentVersion       int           `json:"payment_version"`
	LastPaymentEventAt   *time.Time    `json:"last_payment_event_at,omitempty"`
	LastPaymentError     *string       `json:"last_payment_error,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// IsParty reports whether userID is the customer or the tutor on the booking.
func (b *Booking) IsParty(userID string) bool {
	return userID != "" && (userID == b.CustomerID || userID == b.TutorID)
}

// IsTutor reports whether userID is the booking's tutor.
func (b *Booking) IsTutor(userID string) bool {
	return userID != "" && userID == b.TutorID
}

// Cancelable reports whether the current payment status allows the held
// authorization to be voided at the gateway.
func (s PaymentStatus) Cancelable() bool {
	switch s {
	case PaymentAuthorizationPending, PaymentAuthorized, PaymentCapturable:
		return true
	}
	return false
}

// Clone returns a deep copy of the booking so repository callers cannot
// mutate stored state through shared pointers.
func (b *Booking) Clone() *Booking {
	copied := *b
	if b.PaymentIntentID != nil {
		v := *b.PaymentIntentID
		copied.PaymentIntentID = &v
	}
	if b.LastPaymentEventAt != nil {
		v := *b.LastPaymentEventAt
		copied.LastPaymentEventAt = &v
	}
	if b.LastPaymentError != nil {
		v := *b.LastPaymentError
		copied.LastPaymentError = &v
	}
	return &copied
}
