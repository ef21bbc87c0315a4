package payment

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v81"
)

// MetadataBookingID is the metadata key carrying the booking correlation id
// on checkout sessions, payment intents, and charges.
const MetadataBookingID = "booking_id"

// Object discriminant values for the three event payload shapes we model.
const (
	objectCheckoutSession = "checkout.session"
	objectPaymentIntent   = "payment_intent"
	objectCharge          = "charge"
)

// EventData is the normalized view of a webhook event payload, extracted
// before any state-machine logic runs. Fields are empty when the payload
// shape does not carry them.
type EventData struct {
	BookingID       string
	PaymentIntentID string
	Currency        string
	LastError       *string
}

// discriminator peeks at the payload's object field to pick a shape.
type discriminator struct {
	Object string `json:"object"`
}

// ExtractEventData pulls the booking correlation id and payment identifiers
// out of a webhook event. The gateway delivers one of three overlapping
// payload shapes (checkout session, payment intent, charge), distinguished
// by the object field. Returns false when the event carries no payload
// object or an unmodeled shape.
func ExtractEventData(event stripe.Event) (EventData, bool) {
	// Data is a pointer and a signed envelope may omit it entirely.
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return EventData{}, false
	}

	var disc discriminator
	if err := json.Unmarshal(event.Data.Raw, &disc); err != nil {
		return EventData{}, false
	}

	switch disc.Object {
	case objectCheckoutSession:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return EventData{}, false
		}
		data := EventData{BookingID: session.Metadata[MetadataBookingID]}
		if session.PaymentIntent != nil {
			data.PaymentIntentID = session.PaymentIntent.ID
			data.Currency = string(session.PaymentIntent.Currency)
		}
		return data, true

	case objectPaymentIntent:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return EventData{}, false
		}
		data := EventData{
			BookingID:       intent.Metadata[MetadataBookingID],
			PaymentIntentID: intent.ID,
			Currency:        string(intent.Currency),
		}
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			msg := intent.LastPaymentError.Msg
			data.LastError = &msg
		}
		return data, true

	case objectCharge:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return EventData{}, false
		}
		data := EventData{
			BookingID: charge.Metadata[MetadataBookingID],
			Currency:  string(charge.Currency),
		}
		if charge.PaymentIntent != nil {
			data.PaymentIntentID = charge.PaymentIntent.ID
		}
		return data, true
	}

	return EventData{}, false
}
