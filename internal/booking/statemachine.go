package booking

// Gateway webhook event types this service reacts to. The gateway's event
// taxonomy is a superset of these; anything else is acknowledged and ignored.
const (
	EventCheckoutSessionCompleted   = "checkout.session.completed"
	EventCheckoutSessionExpired     = "checkout.session.expired"
	EventCheckoutSessionAsyncFailed = "checkout.session.async_payment_failed"
	EventAmountCapturableUpdated    = "payment_intent.amount_capturable_updated"
	EventPaymentIntentCanceled      = "payment_intent.canceled"
	EventPaymentIntentFailed        = "payment_intent.payment_failed"
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventChargeCaptured             = "charge.captured"
	EventChargeRefunded             = "charge.refunded"
)

// checkoutSessionFailed is the diagnostic recorded when a checkout session
// expires or fails asynchronously before an authorization was placed.
const checkoutSessionFailed = "checkout_session_failed"

// PaymentTransition is the computed outcome of applying one gateway event to
// a booking's payment state. LastPaymentError is the full replacement value
// for the stored diagnostic: nil clears it.
type PaymentTransition struct {
	Status           PaymentStatus
	LastPaymentError *string
}

// TransitionForEvent maps a gateway event type to the payment-state
// transition it causes. externalErr is the failure message carried on the
// event payload, if any.
//
// The machine is deliberately defined per-event rather than per-edge: the
// gateway delivers events at least once and without ordering guarantees, so
// each transition depends only on the trigger, making re-delivery and
// reordering safe. A later "succeeded" after a stray "canceled" simply
// overwrites, matching gateway truth.
//
// The second return value is false when the event type is not modeled; the
// caller acknowledges such events without touching the booking.
func TransitionForEvent(eventType string, externalErr *string) (PaymentTransition, bool) {
	switch eventType {
	case EventCheckoutSessionCompleted:
		return PaymentTransition{Status: PaymentAuthorizationPending}, true
	case EventCheckoutSessionExpired, EventCheckoutSessionAsyncFailed:
		reason := checkoutSessionFailed
		return PaymentTransition{Status: PaymentRequiresPayment, LastPaymentError: &reason}, true
	case EventAmountCapturableUpdated:
		return PaymentTransition{Status: PaymentCapturable}, true
	case EventPaymentIntentCanceled:
		// Preserve the gateway's message when present.
		return PaymentTransition{Status: PaymentCanceled, LastPaymentError: externalErr}, true
	case EventPaymentIntentFailed:
		return PaymentTransition{Status: PaymentRequiresPayment, LastPaymentError: externalErr}, true
	case EventChargeCaptured, EventPaymentIntentSucceeded:
		return PaymentTransition{Status: PaymentCaptured}, true
	case EventChargeRefunded:
		return PaymentTransition{Status: PaymentRefunded}, true
	}
	return PaymentTransition{}, false
}
