package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"github.com/ngenest/SecretSanta/internal/models"
)

// metadataBatchKey is the PaymentIntent metadata key binding a payment
// to its notification batch.
const metadataBatchKey = "batch_id"

// StripeGateway implements Initiator and Verifier on Stripe
// PaymentIntents.
type StripeGateway struct{}

// NewStripeGateway sets the global API key and returns the gateway.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

// CreatePaymentRequest creates a PaymentIntent carrying the batch id
// in its metadata. The client secret goes back to the browser to
// complete the card flow.
func (g *StripeGateway) CreatePaymentRequest(ctx context.Context, batchID string, amount int64, currency string) (Request, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.AddMetadata(metadataBatchKey, batchID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return Request{}, fmt.Errorf("create payment intent for batch %s: %w", batchID, err)
	}
	return Request{PaymentID: intent.ID, ClientHandle: intent.ClientSecret}, nil
}

// Retrieve implements Verifier by fetching the PaymentIntent from
// Stripe's servers, so the metadata cannot have been tampered with
// client-side.
func (g *StripeGateway) Retrieve(ctx context.Context, paymentID string) (models.PaymentDetails, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}

	intent, err := paymentintent.Get(paymentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return models.PaymentDetails{}, fmt.Errorf("payment %s: %w", paymentID, ErrPaymentNotFound)
		}
		return models.PaymentDetails{}, fmt.Errorf("retrieve payment %s: %w", paymentID, err)
	}

	return models.PaymentDetails{
		Settled:      intent.Status == stripe.PaymentIntentStatusSucceeded,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		BoundBatchID: intent.Metadata[metadataBatchKey],
	}, nil
}
