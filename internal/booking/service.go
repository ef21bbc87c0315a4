package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/studylane/studylane/internal/conversation"
	"github.com/studylane/studylane/internal/money"
	"github.com/studylane/studylane/internal/payment"
)

// ErrPaymentCaptureFailed is returned when the gateway rejects a capture.
var ErrPaymentCaptureFailed = errors.New("payment_capture_failed")

// Service implements the booking commands: create, modify, accept, decline,
// plus the read paths the chat booking panel uses. Every command follows the
// same discipline: read current state, decide the transition, perform the
// gateway side effect, and only then persist — a failed gateway call leaves
// the booking exactly as it was.
type Service struct {
	bookings      Repository
	conversations conversation.Repository
	gateway       payment.Client
	baseURL       string
	currency      string
}

// NewService creates a booking Service.
func NewService(bookings Repository, conversations conversation.Repository, gateway payment.Client, baseURL, currency string) *Service {
	return &Service{
		bookings:      bookings,
		conversations: conversations,
		gateway:       gateway,
		baseURL:       baseURL,
		currency:      currency,
	}
}

// CreateParams are the caller-supplied fields for a new booking request.
type CreateParams struct {
	ConversationID      string
	CustomerID          string
	TutorID             string
	Title               string
	Description         string
	ScheduledStart      time.Time
	ScheduledEnd        time.Time
	HourlyRate          string
	Location            string
	MeetingLink         string
	SpecialInstructions string
}

// ModifyParams are the renegotiated fields for an existing booking.
type ModifyParams struct {
	Title               string
	Description         string
	ScheduledStart      time.Time
	ScheduledEnd        time.Time
	HourlyRate          string
	Location            string
	MeetingLink         string
	SpecialInstructions string
}

// CheckoutResult is returned by Create and Modify: the booking and the URL
// the customer is redirected to for payment authorization.
type CheckoutResult struct {
	BookingID   string
	CheckoutURL string
}

func (s *Service) checkoutURLs(conversationID, bookingID string) (successURL, cancelURL string) {
	base := fmt.Sprintf("%s/chat/%s?booking=%s", s.baseURL, conversationID, bookingID)
	return base + "&checkout=success", base + "&checkout=cancel"
}

// Create inserts a pending booking and starts a manual-capture checkout
// session for it. The insert and the gateway call form a saga: when session
// creation fails the just-inserted row is deleted again, since no payment
// exists yet.
func (s *Service) Create(ctx context.Context, callerID string, p CreateParams) (*CheckoutResult, error) {
	if callerID == "" || (callerID != p.CustomerID && callerID != p.TutorID) {
		return nil, ErrForbidden
	}
	if p.CustomerID == p.TutorID {
		return nil, ErrSameParty
	}

	conv, err := s.conversations.GetByID(ctx, p.ConversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if !conv.HasParticipant(p.CustomerID) || !conv.HasParticipant(p.TutorID) {
		return nil, ErrForbidden
	}

	minutes, err := money.SessionLength(p.ScheduledStart, p.ScheduledEnd)
	if err != nil {
		return nil, err
	}
	totalAmount, err := money.TotalAmount(p.HourlyRate, p.ScheduledStart, p.ScheduledEnd)
	if err != nil {
		return nil, err
	}
	cents, err := money.AmountToCents(totalAmount)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		ConversationID:       p.ConversationID,
		CustomerID:           p.CustomerID,
		TutorID:              p.TutorID,
		Title:                p.Title,
		Description:          p.Description,
		ScheduledStart:       p.ScheduledStart,
		ScheduledEnd:         p.ScheduledEnd,
		SessionLengthMinutes: minutes,
		HourlyRate:           p.HourlyRate,
		TotalAmount:          totalAmount,
		Status:               StatusPending,
		Location:             p.Location,
		MeetingLink:          p.MeetingLink,
		SpecialInstructions:  p.SpecialInstructions,
		PaymentStatus:        PaymentRequiresPayment,
		PaymentAmountCents:   cents,
		PaymentCurrency:      s.currency,
		PaymentVersion:       1,
	}
	if err := s.bookings.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	successURL, cancelURL := s.checkoutURLs(p.ConversationID, b.ID)
	session, err := s.gateway.CreateManualCaptureCheckoutSession(payment.CheckoutSessionParams{
		AmountCents: cents,
		Currency:    s.currency,
		ProductName: p.Title,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			payment.MetadataBookingID: b.ID,
			"conversation_id":         p.ConversationID,
			"customer_id":             p.CustomerID,
			"tutor_id":                p.TutorID,
		},
		IdempotencyKey: payment.IdempotencyKey(b.ID, payment.ActionCreate, b.PaymentVersion),
	})
	if err != nil {
		// Compensating delete: the row exists but no payment does.
		if delErr := s.bookings.Delete(ctx, b.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to delete booking after checkout failure",
				"booking_id", b.ID, "error", delErr)
		}
		return nil, err
	}

	return &CheckoutResult{BookingID: b.ID, CheckoutURL: session.URL}, nil
}

// Modify opens a new negotiation cycle: it creates a checkout session for
// the new amount first, and only on success persists the new fields with an
// incremented payment version and the old authorization reference cleared.
// A gateway failure leaves the booking untouched.
func (s *Service) Modify(ctx context.Context, callerID, bookingID string, p ModifyParams) (*CheckoutResult, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(callerID) {
		return nil, ErrForbidden
	}

	minutes, err := money.SessionLength(p.ScheduledStart, p.ScheduledEnd)
	if err != nil {
		return nil, err
	}
	totalAmount, err := money.TotalAmount(p.HourlyRate, p.ScheduledStart, p.ScheduledEnd)
	if err != nil {
		return nil, err
	}
	cents, err := money.AmountToCents(totalAmount)
	if err != nil {
		return nil, err
	}

	nextVersion := b.PaymentVersion + 1
	successURL, cancelURL := s.checkoutURLs(b.ConversationID, b.ID)
	session, err := s.gateway.CreateManualCaptureCheckoutSession(payment.CheckoutSessionParams{
		AmountCents: cents,
		Currency:    b.PaymentCurrency,
		ProductName: p.Title,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			payment.MetadataBookingID: b.ID,
			"conversation_id":         b.ConversationID,
			"version":                 strconv.Itoa(nextVersion),
		},
		IdempotencyKey: payment.IdempotencyKey(b.ID, payment.ActionCreate, nextVersion),
	})
	if err != nil {
		return nil, err
	}

	b.Title = p.Title
	b.Description = p.Description
	b.ScheduledStart = p.ScheduledStart
	b.ScheduledEnd = p.ScheduledEnd
	b.SessionLengthMinutes = minutes
	b.HourlyRate = p.HourlyRate
	b.TotalAmount = totalAmount
	b.Location = p.Location
	b.MeetingLink = p.MeetingLink
	b.SpecialInstructions = p.SpecialInstructions
	b.Status = StatusModified
	b.PaymentIntentID = nil
	b.PaymentStatus = PaymentRequiresPayment
	b.PaymentAmountCents = cents
	b.PaymentVersion = nextVersion
	b.LastPaymentError = nil

	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to persist modified booking: %w", err)
	}
	return &CheckoutResult{BookingID: b.ID, CheckoutURL: session.URL}, nil
}

// Accept captures the held authorization and marks the booking accepted.
// The capture must succeed before the status write: a failed capture never
// leaves status=accepted. Before capturing, the live intent is retrieved and
// must actually be capturable, so we never capture an intent that was
// canceled or captured out from under the local state.
func (s *Service) Accept(ctx context.Context, callerID, bookingID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsTutor(callerID) {
		return nil, ErrForbidden
	}
	if b.PaymentIntentID == nil || *b.PaymentIntentID == "" {
		return nil, ErrPaymentIntentMissing
	}
	if b.PaymentStatus != PaymentAuthorizationPending && b.PaymentStatus != PaymentCapturable {
		return nil, ErrPaymentNotAuthorizedYet
	}

	intent, err := s.gateway.RetrieveIntent(*b.PaymentIntentID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retrieve payment intent before capture",
			"booking_id", b.ID, "error", err)
		return nil, ErrPaymentIntentMissing
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
		return nil, ErrPaymentNotCapturable
	}

	idemKey := payment.IdempotencyKey(b.ID, payment.ActionCapture, b.PaymentVersion)
	if _, err := s.gateway.CaptureIntent(*b.PaymentIntentID, idemKey); err != nil {
		slog.ErrorContext(ctx, "payment capture failed", "booking_id", b.ID, "error", err)
		return nil, ErrPaymentCaptureFailed
	}

	now := time.Now()
	b.Status = StatusAccepted
	b.PaymentStatus = PaymentCaptured
	b.LastPaymentError = nil
	b.LastPaymentEventAt = &now
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to persist accepted booking: %w", err)
	}
	return b, nil
}

// Decline rejects the booking, first unwinding any payment: a held
// authorization is voided, a captured payment is refunded. When the gateway
// call fails the booking is left untouched and the caller gets a stable
// error token; when no gateway action is needed the payment status is
// carried over unchanged.
func (s *Service) Decline(ctx context.Context, callerID, bookingID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(callerID) {
		return nil, ErrForbidden
	}

	nextPaymentStatus := b.PaymentStatus
	if b.PaymentIntentID != nil && *b.PaymentIntentID != "" {
		switch {
		case b.PaymentStatus.Cancelable():
			if _, err := s.gateway.CancelIntent(*b.PaymentIntentID); err != nil {
				slog.ErrorContext(ctx, "failed to cancel payment intent",
					"booking_id", b.ID, "error", err)
				return nil, ErrPaymentCancelFailed
			}
			nextPaymentStatus = PaymentCanceled
		case b.PaymentStatus == PaymentCaptured:
			if _, err := s.gateway.CreateRefund(*b.PaymentIntentID); err != nil {
				slog.ErrorContext(ctx, "failed to create refund",
					"booking_id", b.ID, "error", err)
				return nil, ErrPaymentRefundFailed
			}
			nextPaymentStatus = PaymentRefunding
		}
	}

	now := time.Now()
	b.Status = StatusDeclined
	b.PaymentStatus = nextPaymentStatus
	b.LastPaymentError = nil
	b.LastPaymentEventAt = &now
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to persist declined booking: %w", err)
	}
	return b, nil
}

// GetByID returns a booking to one of its parties.
func (s *Service) GetByID(ctx context.Context, callerID, bookingID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(callerID) {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListByConversation returns a conversation's bookings to one of its parties.
func (s *Service) ListByConversation(ctx context.Context, callerID, conversationID string) ([]*Booking, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if !conv.HasParticipant(callerID) {
		return nil, ErrForbidden
	}
	return s.bookings.ListByConversation(ctx, conversationID)
}
