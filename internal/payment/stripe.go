// Package payment provides the Stripe gateway adapter, idempotency key
// derivation, and the webhook event dedup ledger for booking payments.
package payment

import (
	"errors"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// ErrNotConfigured is returned by every gateway operation when no API key was
// provided. Surfaced immediately; never retried.
var ErrNotConfigured = errors.New("payment gateway is not configured: set STRIPE_API_KEY to enable payments")

// CheckoutSessionParams are the inputs for a manual-capture Checkout Session.
type CheckoutSessionParams struct {
	AmountCents    int64
	Currency       string
	ProductName    string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// CheckoutSession is the result of a session creation: the URL the payer is
// redirected to and the payment intent the session authorized, when known.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
}

// Client is the gateway adapter interface. Implementations must honor
// idempotency keys: a repeated key returns the original result rather than
// performing a second side effect.
type Client interface {
	// CreateManualCaptureCheckoutSession creates a payment-mode Checkout
	// Session with capture_method=manual, so funds are authorized but not
	// collected until CaptureIntent is called.
	CreateManualCaptureCheckoutSession(params CheckoutSessionParams) (*CheckoutSession, error)

	// RetrieveIntent fetches the live payment intent from the gateway.
	RetrieveIntent(id string) (*stripe.PaymentIntent, error)

	// CaptureIntent collects a previously authorized payment.
	CaptureIntent(id, idempotencyKey string) (*stripe.PaymentIntent, error)

	// CancelIntent voids a held authorization.
	CancelIntent(id string) (*stripe.PaymentIntent, error)

	// CreateRefund refunds the full captured amount of a payment intent.
	CreateRefund(intentID string) (*stripe.Refund, error)
}

// StripeClient implements Client against the Stripe API. It is constructed
// explicitly and injected into handlers so tests can substitute a fake
// without touching process-wide state.
type StripeClient struct {
	api *client.API
}

// NewStripeClient creates a StripeClient. An empty API key yields a client
// whose operations all return ErrNotConfigured, so a deployment without
// payment credentials degrades to explicit configuration errors instead of
// opaque transport failures.
func NewStripeClient(apiKey string) *StripeClient {
	if apiKey == "" {
		return &StripeClient{}
	}
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

// CreateManualCaptureCheckoutSession creates a manual-capture Checkout Session.
func (c *StripeClient) CreateManualCaptureCheckoutSession(params CheckoutSessionParams) (*CheckoutSession, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
			Metadata:      params.Metadata,
		},
		Metadata: params.Metadata,
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.ProductName),
					},
				},
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sessionParams.AddExpand("payment_intent")
	if params.IdempotencyKey != "" {
		sessionParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	sess, err := c.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, err
	}

	result := &CheckoutSession{ID: sess.ID, URL: sess.URL}
	if sess.PaymentIntent != nil {
		result.PaymentIntentID = sess.PaymentIntent.ID
	}
	return result, nil
}

// RetrieveIntent fetches the live payment intent from the gateway.
func (c *StripeClient) RetrieveIntent(id string) (*stripe.PaymentIntent, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	return c.api.PaymentIntents.Get(id, nil)
}

// CaptureIntent collects a previously authorized payment.
func (c *StripeClient) CaptureIntent(id, idempotencyKey string) (*stripe.PaymentIntent, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	params := &stripe.PaymentIntentCaptureParams{}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	return c.api.PaymentIntents.Capture(id, params)
}

// CancelIntent voids a held authorization.
func (c *StripeClient) CancelIntent(id string) (*stripe.PaymentIntent, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	return c.api.PaymentIntents.Cancel(id, nil)
}

// CreateRefund refunds the full captured amount of a payment intent.
func (c *StripeClient) CreateRefund(intentID string) (*stripe.Refund, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	return c.api.Refunds.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	})
}
