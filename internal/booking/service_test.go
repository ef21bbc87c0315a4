package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/studylane/studylane/internal/conversation"
	"github.com/studylane/studylane/internal/payment"
)

// fakeGateway records gateway calls and returns scripted results.
type fakeGateway struct {
	sessions    []payment.CheckoutSessionParams
	sessionURL  string
	sessionErr  error
	intent      *stripe.PaymentIntent
	retrieveErr error
	captureKeys []string
	captureErr  error
	canceledIDs []string
	cancelErr   error
	refundedIDs []string
	refundErr   error
}

func (f *fakeGateway) CreateManualCaptureCheckoutSession(params payment.CheckoutSessionParams) (*payment.CheckoutSession, error) {
	f.sessions = append(f.sessions, params)
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	url := f.sessionURL
	if url == "" {
		url = "https://checkout.example.test/session"
	}
	return &payment.CheckoutSession{ID: "cs_test", URL: url}, nil
}

func (f *fakeGateway) RetrieveIntent(id string) (*stripe.PaymentIntent, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	if f.intent != nil {
		return f.intent, nil
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusRequiresCapture}, nil
}

func (f *fakeGateway) CaptureIntent(id, idempotencyKey string) (*stripe.PaymentIntent, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.captureKeys = append(f.captureKeys, idempotencyKey)
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (f *fakeGateway) CancelIntent(id string) (*stripe.PaymentIntent, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.canceledIDs = append(f.canceledIDs, id)
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusCanceled}, nil
}

func (f *fakeGateway) CreateRefund(intentID string) (*stripe.Refund, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refundedIDs = append(f.refundedIDs, intentID)
	return &stripe.Refund{ID: "re_test"}, nil
}

type serviceFixture struct {
	svc      *Service
	bookings *InMemoryRepository
	gateway  *fakeGateway
	conv     *conversation.Conversation
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	bookings := NewInMemoryRepository()
	conversations := conversation.NewInMemoryRepository()
	conv, err := conversations.FindOrCreate(context.Background(), "customer-1", "tutor-1")
	if err != nil {
		t.Fatalf("FindOrCreate returned error: %v", err)
	}
	gw := &fakeGateway{}
	svc := NewService(bookings, conversations, gw, "https://app.example.test", "aud")
	return &serviceFixture{svc: svc, bookings: bookings, gateway: gw, conv: conv}
}

func (f *serviceFixture) createParams() CreateParams {
	start := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)
	return CreateParams{
		ConversationID: f.conv.ID,
		CustomerID:     "customer-1",
		TutorID:        "tutor-1",
		Title:          "Algebra session",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(90 * time.Minute),
		HourlyRate:     "20",
	}
}

// seed inserts a booking directly so command tests can start from any state.
func (f *serviceFixture) seed(t *testing.T, mutate func(*Booking)) *Booking {
	t.Helper()
	start := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)
	b := &Booking{
		ConversationID:       f.conv.ID,
		CustomerID:           "customer-1",
		TutorID:              "tutor-1",
		Title:                "Algebra session",
		ScheduledStart:       start,
		ScheduledEnd:         start.Add(90 * time.Minute),
		SessionLengthMinutes: 90,
		HourlyRate:           "20",
		TotalAmount:          "30.00",
		Status:               StatusPending,
		PaymentStatus:        PaymentRequiresPayment,
		PaymentAmountCents:   3000,
		PaymentCurrency:      "aud",
		PaymentVersion:       1,
	}
	if mutate != nil {
		mutate(b)
	}
	if err := f.bookings.Insert(context.Background(), b); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	return b
}

func TestCreateBooking(t *testing.T) {
	f := newServiceFixture(t)
	res, err := f.svc.Create(context.Background(), "customer-1", f.createParams())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if res.CheckoutURL == "" {
		t.Error("expected a checkout URL")
	}

	b, err := f.bookings.GetByID(context.Background(), res.BookingID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if b.Status != StatusPending {
		t.Errorf("status = %q, want %q", b.Status, StatusPending)
	}
	if b.PaymentStatus != PaymentRequiresPayment {
		t.Errorf("payment status = %q, want %q", b.PaymentStatus, PaymentRequiresPayment)
	}
	if b.PaymentVersion != 1 {
		t.Errorf("payment version = %d, want 1", b.PaymentVersion)
	}
	if b.TotalAmount != "30.00" || b.PaymentAmountCents != 3000 {
		t.Errorf("amount = %q (%d cents), want 30.00 (3000 cents)", b.TotalAmount, b.PaymentAmountCents)
	}

	if len(f.gateway.sessions) != 1 {
		t.Fatalf("expected 1 checkout session, got %d", len(f.gateway.sessions))
	}
	sess := f.gateway.sessions[0]
	if sess.Metadata[payment.MetadataBookingID] != b.ID {
		t.Errorf("session metadata booking id = %q, want %q", sess.Metadata[payment.MetadataBookingID], b.ID)
	}
	wantKey := fmt.Sprintf("booking:%s:create:v1", b.ID)
	if sess.IdempotencyKey != wantKey {
		t.Errorf("idempotency key = %q, want %q", sess.IdempotencyKey, wantKey)
	}
	if !strings.Contains(sess.SuccessURL, "checkout=success") || !strings.Contains(sess.CancelURL, "checkout=cancel") {
		t.Errorf("unexpected redirect URLs: %q / %q", sess.SuccessURL, sess.CancelURL)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newServiceFixture(t)

	t.Run("caller must be a party", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), "stranger", f.createParams())
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("customer and tutor must differ", func(t *testing.T) {
		p := f.createParams()
		p.TutorID = p.CustomerID
		_, err := f.svc.Create(context.Background(), p.CustomerID, p)
		if !errors.Is(err, ErrSameParty) {
			t.Errorf("err = %v, want ErrSameParty", err)
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		p := f.createParams()
		p.ConversationID = "missing"
		_, err := f.svc.Create(context.Background(), "customer-1", p)
		if !errors.Is(err, ErrConversationNotFound) {
			t.Errorf("err = %v, want ErrConversationNotFound", err)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		p := f.createParams()
		p.ScheduledEnd = p.ScheduledStart.Add(-time.Hour)
		if _, err := f.svc.Create(context.Background(), "customer-1", p); err == nil {
			t.Error("expected a schedule error")
		}
	})
}

func TestCreateBookingDeletesOnCheckoutFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.sessionErr = errors.New("stripe is down")

	_, err := f.svc.Create(context.Background(), "customer-1", f.createParams())
	if err == nil {
		t.Fatal("expected error from Create")
	}
	got, err := f.svc.ListByConversation(context.Background(), "customer-1", f.conv.ID)
	if err != nil {
		t.Fatalf("ListByConversation returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected compensating delete to remove the booking, found %d", len(got))
	}
}

func TestModifyBooking(t *testing.T) {
	f := newServiceFixture(t)
	intentID := "pi_old"
	b := f.seed(t, func(b *Booking) {
		b.PaymentIntentID = &intentID
		b.PaymentStatus = PaymentAuthorizationPending
	})

	start := b.ScheduledStart.Add(24 * time.Hour)
	res, err := f.svc.Modify(context.Background(), "tutor-1", b.ID, ModifyParams{
		Title:          "Algebra session (rescheduled)",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		HourlyRate:     "25",
	})
	if err != nil {
		t.Fatalf("Modify returned error: %v", err)
	}
	if res.CheckoutURL == "" {
		t.Error("expected a new checkout URL")
	}

	got, err := f.bookings.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Status != StatusModified {
		t.Errorf("status = %q, want %q", got.Status, StatusModified)
	}
	if got.PaymentVersion != 2 {
		t.Errorf("payment version = %d, want 2", got.PaymentVersion)
	}
	if got.PaymentIntentID != nil {
		t.Errorf("payment intent id = %v, want cleared", *got.PaymentIntentID)
	}
	if got.PaymentStatus != PaymentRequiresPayment {
		t.Errorf("payment status = %q, want %q", got.PaymentStatus, PaymentRequiresPayment)
	}
	if got.TotalAmount != "25.00" || got.PaymentAmountCents != 2500 {
		t.Errorf("amount = %q (%d cents), want 25.00 (2500 cents)", got.TotalAmount, got.PaymentAmountCents)
	}

	sess := f.gateway.sessions[len(f.gateway.sessions)-1]
	wantKey := fmt.Sprintf("booking:%s:create:v2", b.ID)
	if sess.IdempotencyKey != wantKey {
		t.Errorf("idempotency key = %q, want %q", sess.IdempotencyKey, wantKey)
	}
}

func TestModifyBookingGatewayFailureLeavesStateUntouched(t *testing.T) {
	f := newServiceFixture(t)
	intentID := "pi_old"
	b := f.seed(t, func(b *Booking) {
		b.PaymentIntentID = &intentID
		b.PaymentStatus = PaymentAuthorizationPending
	})
	f.gateway.sessionErr = errors.New("stripe is down")

	start := b.ScheduledStart.Add(24 * time.Hour)
	_, err := f.svc.Modify(context.Background(), "customer-1", b.ID, ModifyParams{
		Title:          "Changed",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		HourlyRate:     "25",
	})
	if err == nil {
		t.Fatal("expected error from Modify")
	}

	got, _ := f.bookings.GetByID(context.Background(), b.ID)
	if got.PaymentVersion != 1 || got.Status != StatusPending || got.PaymentIntentID == nil {
		t.Errorf("booking mutated despite gateway failure: %+v", got)
	}
}

func TestAcceptBooking(t *testing.T) {
	f := newServiceFixture(t)
	intentID := "pi_123"
	b := f.seed(t, func(b *Booking) {
		b.PaymentIntentID = &intentID
		b.PaymentStatus = PaymentCapturable
	})

	got, err := f.svc.Accept(context.Background(), "tutor-1", b.ID)
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("status = %q, want %q", got.Status, StatusAccepted)
	}
	if got.PaymentStatus != PaymentCaptured {
		t.Errorf("payment status = %q, want %q", got.PaymentStatus, PaymentCaptured)
	}
	wantKey := fmt.Sprintf("booking:%s:capture:v1", b.ID)
	if len(f.gateway.captureKeys) != 1 || f.gateway.captureKeys[0] != wantKey {
		t.Errorf("capture keys = %v, want [%q]", f.gateway.captureKeys, wantKey)
	}
}

func TestAcceptBookingRejections(t *testing.T) {
	intentID := "pi_123"
	tests := []struct {
		name    string
		caller  string
		mutate  func(*Booking)
		setup   func(*fakeGateway)
		wantErr error
	}{
		{
			name:    "only the tutor may accept",
			caller:  "customer-1",
			mutate:  func(b *Booking) { b.PaymentIntentID = &intentID; b.PaymentStatus = PaymentCapturable },
			wantErr: ErrForbidden,
		},
		{
			name:    "no payment intent yet",
			caller:  "tutor-1",
			mutate:  func(b *Booking) { b.PaymentStatus = PaymentCapturable },
			wantErr: ErrPaymentIntentMissing,
		},
		{
			name:    "payment not authorized yet",
			caller:  "tutor-1",
			mutate:  func(b *Booking) { b.PaymentIntentID = &intentID },
			wantErr: ErrPaymentNotAuthorizedYet,
		},
		{
			name:   "live intent no longer capturable",
			caller: "tutor-1",
			mutate: func(b *Booking) { b.PaymentIntentID = &intentID; b.PaymentStatus = PaymentCapturable },
			setup: func(gw *fakeGateway) {
				gw.intent = &stripe.PaymentIntent{ID: intentID, Status: stripe.PaymentIntentStatusCanceled}
			},
			wantErr: ErrPaymentNotCapturable,
		},
		{
			name:   "capture call fails",
			caller: "tutor-1",
			mutate: func(b *Booking) { b.PaymentIntentID = &intentID; b.PaymentStatus = PaymentCapturable },
			setup: func(gw *fakeGateway) {
				gw.captureErr = errors.New("card dispute hold")
			},
			wantErr: ErrPaymentCaptureFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)
			b := f.seed(t, tc.mutate)
			if tc.setup != nil {
				tc.setup(f.gateway)
			}

			_, err := f.svc.Accept(context.Background(), tc.caller, b.ID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			got, _ := f.bookings.GetByID(context.Background(), b.ID)
			if got.Status != StatusPending {
				t.Errorf("status mutated to %q on failed accept", got.Status)
			}
		})
	}
}

func TestDeclineBooking(t *testing.T) {
	intentID := "pi_123"

	t.Run("voids a held authorization", func(t *testing.T) {
		f := newServiceFixture(t)
		b := f.seed(t, func(b *Booking) {
			b.PaymentIntentID = &intentID
			b.PaymentStatus = PaymentAuthorizationPending
		})

		got, err := f.svc.Decline(context.Background(), "tutor-1", b.ID)
		if err != nil {
			t.Fatalf("Decline returned error: %v", err)
		}
		if got.Status != StatusDeclined || got.PaymentStatus != PaymentCanceled {
			t.Errorf("got %q/%q, want declined/canceled", got.Status, got.PaymentStatus)
		}
		if len(f.gateway.canceledIDs) != 1 || f.gateway.canceledIDs[0] != intentID {
			t.Errorf("canceled intents = %v, want [%q]", f.gateway.canceledIDs, intentID)
		}
	})

	t.Run("refunds a captured payment", func(t *testing.T) {
		f := newServiceFixture(t)
		b := f.seed(t, func(b *Booking) {
			b.PaymentIntentID = &intentID
			b.PaymentStatus = PaymentCaptured
		})

		got, err := f.svc.Decline(context.Background(), "customer-1", b.ID)
		if err != nil {
			t.Fatalf("Decline returned error: %v", err)
		}
		if got.Status != StatusDeclined || got.PaymentStatus != PaymentRefunding {
			t.Errorf("got %q/%q, want declined/refunding", got.Status, got.PaymentStatus)
		}
		if len(f.gateway.refundedIDs) != 1 {
			t.Errorf("refunded intents = %v, want one entry", f.gateway.refundedIDs)
		}
	})

	t.Run("no gateway call without an intent", func(t *testing.T) {
		f := newServiceFixture(t)
		b := f.seed(t, nil)

		got, err := f.svc.Decline(context.Background(), "customer-1", b.ID)
		if err != nil {
			t.Fatalf("Decline returned error: %v", err)
		}
		if got.Status != StatusDeclined || got.PaymentStatus != PaymentRequiresPayment {
			t.Errorf("got %q/%q, want declined/requires_payment", got.Status, got.PaymentStatus)
		}
		if len(f.gateway.canceledIDs) != 0 || len(f.gateway.refundedIDs) != 0 {
			t.Error("unexpected gateway calls")
		}
	})

	t.Run("cancel failure leaves the booking untouched", func(t *testing.T) {
		f := newServiceFixture(t)
		b := f.seed(t, func(b *Booking) {
			b.PaymentIntentID = &intentID
			b.PaymentStatus = PaymentAuthorized
		})
		f.gateway.cancelErr = errors.New("stripe is down")

		_, err := f.svc.Decline(context.Background(), "tutor-1", b.ID)
		if !errors.Is(err, ErrPaymentCancelFailed) {
			t.Fatalf("err = %v, want ErrPaymentCancelFailed", err)
		}
		got, _ := f.bookings.GetByID(context.Background(), b.ID)
		if got.Status != StatusPending || got.PaymentStatus != PaymentAuthorized {
			t.Errorf("booking mutated despite cancel failure: %q/%q", got.Status, got.PaymentStatus)
		}
	})

	t.Run("refund failure leaves the booking untouched", func(t *testing.T) {
		f := newServiceFixture(t)
		b := f.seed(t, func(b *Booking) {
			b.PaymentIntentID = &intentID
			b.PaymentStatus = PaymentCaptured
		})
		f.gateway.refundErr = errors.New("stripe is down")

		_, err := f.svc.Decline(context.Background(), "tutor-1", b.ID)
		if !errors.Is(err, ErrPaymentRefundFailed) {
			t.Fatalf("err = %v, want ErrPaymentRefundFailed", err)
		}
		got, _ := f.bookings.GetByID(context.Background(), b.ID)
		if got.Status != StatusPending || got.PaymentStatus != PaymentCaptured {
			t.Errorf("booking mutated despite refund failure: %q/%q", got.Status, got.PaymentStatus)
		}
	})
}

func TestReadPathsRequireParty(t *testing.T) {
	f := newServiceFixture(t)
	b := f.seed(t, nil)

	if _, err := f.svc.GetByID(context.Background(), "stranger", b.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("GetByID err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.ListByConversation(context.Background(), "stranger", f.conv.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("ListByConversation err = %v, want ErrForbidden", err)
	}

	got, err := f.svc.GetByID(context.Background(), "customer-1", b.ID)
	if err != nil || got.ID != b.ID {
		t.Errorf("GetByID = %v, %v, want the booking", got, err)
	}
	list, err := f.svc.ListByConversation(context.Background(), "tutor-1", f.conv.ID)
	if err != nil || len(list) != 1 {
		t.Errorf("ListByConversation = %d bookings, %v, want 1", len(list), err)
	}
}
