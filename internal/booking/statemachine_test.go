package booking

import "testing"

// TestTransitionForEvent_Table verifies the event-to-status mapping.
func TestTransitionForEvent_Table(t *testing.T) {
	externalMsg := "card_declined"

	cases := []struct {
		name        string
		eventType   string
		externalErr *string
		wantStatus  PaymentStatus
		wantError   *string
	}{
		{"checkout completed", EventCheckoutSessionCompleted, nil, PaymentAuthorizationPending, nil},
		{"checkout expired", EventCheckoutSessionExpired, nil, PaymentRequiresPayment, strPtr("checkout_session_failed")},
		{"checkout async failed", EventCheckoutSessionAsyncFailed, nil, PaymentRequiresPayment, strPtr("checkout_session_failed")},
		{"capturable", EventAmountCapturableUpdated, nil, PaymentCapturable, nil},
		{"canceled with message", EventPaymentIntentCanceled, &externalMsg, PaymentCanceled, &externalMsg},
		{"canceled without message", EventPaymentIntentCanceled, nil, PaymentCanceled, nil},
		{"payment failed", EventPaymentIntentFailed, &externalMsg, PaymentRequiresPayment, &externalMsg},
		{"intent succeeded", EventPaymentIntentSucceeded, nil, PaymentCaptured, nil},
		{"charge captured", EventChargeCaptured, nil, PaymentCaptured, nil},
		{"charge refunded", EventChargeRefunded, nil, PaymentRefunded, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, ok := TransitionForEvent(c.eventType, c.externalErr)
			if !ok {
				t.Fatalf("event %s should be modeled", c.eventType)
			}
			if tr.Status != c.wantStatus {
				t.Errorf("status = %s, want %s", tr.Status, c.wantStatus)
			}
			if (tr.LastPaymentError == nil) != (c.wantError == nil) {
				t.Fatalf("lastPaymentError = %v, want %v", tr.LastPaymentError, c.wantError)
			}
			if tr.LastPaymentError != nil && *tr.LastPaymentError != *c.wantError {
				t.Errorf("lastPaymentError = %q, want %q", *tr.LastPaymentError, *c.wantError)
			}
		})
	}
}

// TestTransitionForEvent_Unknown verifies unmodeled events produce no transition.
func TestTransitionForEvent_Unknown(t *testing.T) {
	for _, eventType := range []string{"account.updated", "invoice.paid", "customer.created", ""} {
		if _, ok := TransitionForEvent(eventType, nil); ok {
			t.Errorf("event %q should not be modeled", eventType)
		}
	}
}

// TestTransitionForEvent_SuccessClearsError verifies successful transitions
// replace a prior failure diagnostic with nil.
func TestTransitionForEvent_SuccessClearsError(t *testing.T) {
	for _, eventType := range []string{
		EventCheckoutSessionCompleted,
		EventAmountCapturableUpdated,
		EventPaymentIntentSucceeded,
		EventChargeCaptured,
		EventChargeRefunded,
	} {
		tr, ok := TransitionForEvent(eventType, nil)
		if !ok {
			t.Fatalf("event %s should be modeled", eventType)
		}
		if tr.LastPaymentError != nil {
			t.Errorf("event %s should clear lastPaymentError, got %q", eventType, *tr.LastPaymentError)
		}
	}
}

// TestCancelable covers the decline branch predicate.
func TestCancelable(t *testing.T) {
	cancelable := []PaymentStatus{PaymentAuthorizationPending, PaymentAuthorized, PaymentCapturable}
	for _, s := range cancelable {
		if !s.Cancelable() {
			t.Errorf("%s should be cancelable", s)
		}
	}
	notCancelable := []PaymentStatus{PaymentRequiresPayment, PaymentCaptured, PaymentRefunding, PaymentRefunded, PaymentCanceled}
	for _, s := range notCancelable {
		if s.Cancelable() {
			t.Errorf("%s should not be cancelable", s)
		}
	}
}

func strPtr(s string) *string { return &s }
