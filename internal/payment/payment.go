// Package payment defines the contracts the core needs from a payment
// provider and the Stripe implementation of them.
package payment

import (
	"context"
	"errors"

	"github.com/ngenest/SecretSanta/internal/models"
)

// ErrPaymentNotFound means the provider has no record of the artifact.
// It is distinct from a payment that exists but has not settled.
var ErrPaymentNotFound = errors.New("payment not found")

// Request is a freshly created payment that the client still has to
// complete. ClientHandle is whatever the provider's browser SDK needs
// (for Stripe, the client secret).
type Request struct {
	PaymentID    string `json:"paymentId"`
	ClientHandle string `json:"clientHandle"`
}

// Initiator creates provider-side payment requests bound to a batch.
type Initiator interface {
	CreatePaymentRequest(ctx context.Context, batchID string, amount int64, currency string) (Request, error)
}

// Verifier re-fetches a payment artifact from the provider's own
// records. The returned details MUST come from the provider, never
// from anything client-supplied: the batch-id binding in the metadata
// is the sole anti-fraud control in the delivery flow.
type Verifier interface {
	Retrieve(ctx context.Context, paymentID string) (models.PaymentDetails, error)
}
