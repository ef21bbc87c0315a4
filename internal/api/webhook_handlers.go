package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/studylane/studylane/internal/booking"
	"github.com/studylane/studylane/internal/middleware"
	"github.com/studylane/studylane/internal/payment"
)

// Webhook event outcomes used as metric labels and ack info strings.
const (
	webhookOutcomeApplied   = "applied"
	webhookOutcomeDuplicate = "duplicate"
	webhookOutcomeStale     = "stale"
	webhookOutcomeIgnored   = "ignored"
	webhookOutcomeError     = "error"
)

// WebhookHandlers holds dependencies for webhook-related HTTP handlers.
type WebhookHandlers struct {
	webhookSecret string
	ledger        payment.EventLedger
	bookings      booking.Repository
	metrics       *middleware.Metrics
}

// NewWebhookHandlers creates a new WebhookHandlers instance. metrics may be
// nil when webhook metrics are not wanted (tests).
func NewWebhookHandlers(webhookSecret string, ledger payment.EventLedger, bookings booking.Repository, metrics *middleware.Metrics) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		ledger:        ledger,
		bookings:      bookings,
		metrics:       metrics,
	}
}

// webhookAck is the body returned for every accepted delivery. Business
// outcomes (duplicate, stale, unknown booking) are acknowledged with 200 so
// the gateway stops redelivering; only transport and persistence failures
// get error statuses.
type webhookAck struct {
	Success bool   `json:"success"`
	Info    string `json:"info,omitempty"`
}

func (h *WebhookHandlers) countEvent(eventType, outcome string) {
	if h.metrics != nil {
		h.metrics.IncWebhookEvent(eventType, outcome)
	}
}

// HandleStripeWebhook processes Stripe webhook events with signature verification.
// POST /internal/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.webhookSecret == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "webhook secret is not configured")
		return
	}

	// Read the request body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	// Get the Stripe signature from the header
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	// Verify the webhook signature. Authenticity is the HMAC check; the
	// account's pinned API version is not an authenticity property, and
	// rejecting on it would 400 every delivery from an account pinned to a
	// version other than the SDK's.
	event, err := webhook.ConstructEventWithOptions(body, signature, h.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	eventType := string(event.Type)

	// Log minimal event info (type and ID only, not full payload)
	slog.InfoContext(ctx, "webhook event received", "event_type", eventType, "event_id", event.ID)

	// Correlate the event before touching any state. A payload shape we don't
	// track, or one carrying no booking reference, is acknowledged so Stripe
	// stops redelivering it.
	data, ok := payment.ExtractEventData(event)
	if !ok {
		h.countEvent(eventType, webhookOutcomeIgnored)
		WriteJSON(w, ctx, http.StatusOK, webhookAck{Success: true, Info: "unhandled event payload"})
		return
	}
	if data.BookingID == "" {
		slog.WarnContext(ctx, "webhook event carries no booking reference",
			"event_type", eventType, "event_id", event.ID)
		h.countEvent(eventType, webhookOutcomeIgnored)
		WriteJSON(w, ctx, http.StatusOK, webhookAck{Success: true, Info: "no booking reference"})
		return
	}

	// Dedup ledger: the unique event id makes redelivery a no-op.
	duplicate, err := h.ledger.RecordEvent(ctx, event.ID, data.BookingID, eventType, body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record webhook event", "event_id", event.ID, "error", err)
		h.countEvent(eventType, webhookOutcomeError)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}
	if duplicate {
		slog.InfoContext(ctx, "webhook event already processed, ignoring", "event_id", event.ID)
		h.countEvent(eventType, webhookOutcomeDuplicate)
		WriteJSON(w, ctx, http.StatusOK, webhookAck{Success: true, Info: "duplicate event"})
		return
	}

	// Map the event type only after the ledger write: a correlated event of
	// an unmodeled type is still recorded for audit and replay.
	transition, known := booking.TransitionForEvent(eventType, data.LastError)
	if !known {
		h.countEvent(eventType, webhookOutcomeIgnored)
		WriteJSON(w, ctx, http.StatusOK, webhookAck{Success: true, Info: "unhandled event type"})
		return
	}

	// Apply the transition, fenced by the event timestamp so an out-of-order
	// redelivery cannot regress the booking.
	applied, err := h.bookings.ApplyPaymentEvent(ctx, data.BookingID, booking.PaymentEventUpdate{
		Status:           transition.Status,
		LastPaymentError: transition.LastPaymentError,
		PaymentIntentID:  data.PaymentIntentID,
		Currency:         data.Currency,
		OccurredAt:       time.Unix(event.Created, 0),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to apply payment event",
			"event_id", event.ID, "booking_id", data.BookingID, "error", err)
		h.countEvent(eventType, webhookOutcomeError)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}
	if !applied {
		slog.InfoContext(ctx, "webhook event superseded or booking unknown",
			"event_id", event.ID, "booking_id", data.BookingID)
		h.countEvent(eventType, webhookOutcomeStale)
		WriteJSON(w, ctx, http.StatusOK, webhookAck{Success: true, Info: "event superseded or booking unknown"})
		return
	}

	slog.InfoContext(ctx, "payment event applied",
		"event_id", event.ID,
		"booking_id", data.BookingID,
		"payment_status", transition.Status)
	h.countEvent(eventType, webhookOutcomeApplied)
	WriteJSON(w, ctx, http.StatusOK, webhookAck{Success: true})
}
