package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"github.com/ngenest/SecretSanta/internal/models"
	"github.com/ngenest/SecretSanta/internal/notify"
	"github.com/ngenest/SecretSanta/internal/payment"
	"github.com/ngenest/SecretSanta/internal/store"
)

// BatchDispatcher sends every message in a batch. Satisfied by
// notify.Dispatcher.
type BatchDispatcher interface {
	DispatchBatch(ctx context.Context, batch models.NotificationBatch) error
}

var _ BatchDispatcher = (*notify.Dispatcher)(nil)

// Fee is the fixed price of sending one notification batch.
type Fee struct {
	Amount   int64
	Currency string
}

// BatchService owns the notification batches and the payment gate in
// front of them. A batch lives from draw completion until its messages
// go out; only a verified, correctly bound, fully settled payment
// releases it.
type BatchService struct {
	batches    *store.Store[models.NotificationBatch]
	locks      *store.KeyedMutex
	verifier   payment.Verifier
	initiator  payment.Initiator
	dispatcher BatchDispatcher
	fee        Fee
	timeout    time.Duration
	now        func() time.Time
}

// NewBatchService creates a BatchService. timeout bounds each payment
// verification and each dispatch attempt so no consume call blocks
// indefinitely.
func NewBatchService(
	batches *store.Store[models.NotificationBatch],
	verifier payment.Verifier,
	initiator payment.Initiator,
	dispatcher BatchDispatcher,
	fee Fee,
	timeout time.Duration,
) *BatchService {
	return &BatchService{
		batches:    batches,
		locks:      store.NewKeyedMutex(),
		verifier:   verifier,
		initiator:  initiator,
		dispatcher: dispatcher,
		fee:        fee,
		timeout:    timeout,
		now:        time.Now,
	}
}

// CreateBatch stores the payload under a fresh batch id. An id is
// never reused while its batch is still pending.
func (s *BatchService) CreateBatch(payload models.BatchPayload) models.NotificationBatch {
	for {
		batch := models.NotificationBatch{
			BatchID:   uuid.NewString(),
			Payload:   payload,
			CreatedAt: s.now(),
		}
		if s.batches.SetIfAbsent(batch.BatchID, batch) {
			logger.Infof("created notification batch %s with %d assignments",
				batch.BatchID, len(payload.Assignments))
			return batch
		}
	}
}

// GetBatch returns a pending batch.
func (s *BatchService) GetBatch(batchID string) (models.NotificationBatch, error) {
	batch, ok := s.batches.Get(batchID)
	if !ok {
		return models.NotificationBatch{}, fmt.Errorf("batch %s: %w", batchID, ErrBatchNotFound)
	}
	return batch, nil
}

// CreatePaymentRequest asks the payment provider for a new payment
// artifact priced at the notification fee and bound to batchID via
// provider-side metadata.
func (s *BatchService) CreatePaymentRequest(ctx context.Context, batchID string) (payment.Request, error) {
	if _, ok := s.batches.Get(batchID); !ok {
		return payment.Request{}, fmt.Errorf("batch %s: %w", batchID, ErrBatchNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.initiator.CreatePaymentRequest(ctx, batchID, s.fee.Amount, s.fee.Currency)
	if err != nil {
		return payment.Request{}, err
	}
	logger.Infof("payment request %s created for batch %s", req.PaymentID, batchID)
	return req, nil
}

// ConsumeIfPaid verifies the payment and, if it clears every check,
// dispatches the batch's messages and removes the batch. The checks
// run strictly in this order: batch existence, settlement, batch-id
// binding, amount, currency, dispatch. A dispatch failure keeps the
// batch so the same settled payment can be retried; every payment
// failure is terminal for that artifact.
//
// All of it runs under the per-batch mutex, so two concurrent consume
// attempts for the same batch cannot both dispatch: the loser of the
// race finds the batch gone and gets ErrBatchNotFound.
func (s *BatchService) ConsumeIfPaid(ctx context.Context, batchID, paymentID string) (time.Time, error) {
	unlock := s.locks.Lock(batchID)
	defer unlock()

	batch, ok := s.batches.Get(batchID)
	if !ok {
		return time.Time{}, fmt.Errorf("batch %s: %w", batchID, ErrBatchNotFound)
	}

	details, err := s.verifyPayment(ctx, batchID, paymentID)
	if err != nil {
		return time.Time{}, err
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.dispatcher.DispatchBatch(dispatchCtx, batch); err != nil {
		logger.Errorf("batch %s: dispatch failed, batch kept for retry: %v", batchID, err)
		return time.Time{}, fmt.Errorf("batch %s: %w: %w", batchID, ErrDispatchFailed, err)
	}

	s.batches.Delete(batchID)
	sentAt := s.now()
	logger.Infof("batch %s dispatched and consumed (payment %s, %d %s)",
		batchID, paymentID, details.Amount, details.Currency)
	return sentAt, nil
}

func (s *BatchService) verifyPayment(ctx context.Context, batchID, paymentID string) (models.PaymentDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	details, err := s.verifier.Retrieve(ctx, paymentID)
	if err != nil {
		return models.PaymentDetails{}, err
	}

	switch {
	case !details.Settled:
		return models.PaymentDetails{}, fmt.Errorf("payment %s: %w", paymentID, ErrPaymentNotSettled)
	case details.BoundBatchID != batchID:
		return models.PaymentDetails{}, fmt.Errorf("payment %s is bound to %q, not %q: %w",
			paymentID, details.BoundBatchID, batchID, ErrPaymentMismatch)
	case details.Amount < s.fee.Amount:
		return models.PaymentDetails{}, fmt.Errorf("payment %s: got %d, fee is %d: %w",
			paymentID, details.Amount, s.fee.Amount, ErrPaymentAmountInsufficient)
	case !strings.EqualFold(details.Currency, s.fee.Currency):
		return models.PaymentDetails{}, fmt.Errorf("payment %s: got %q, fee is %q: %w",
			paymentID, details.Currency, s.fee.Currency, ErrPaymentCurrencyMismatch)
	}
	return details, nil
}

// SweepAbandoned removes batches older than maxAge and returns how
// many were reclaimed. Run from a background janitor; a batch that is
// never paid for would otherwise sit in memory forever.
func (s *BatchService) SweepAbandoned(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	removed := 0
	s.batches.Range(func(key string, batch models.NotificationBatch) bool {
		if batch.CreatedAt.Before(cutoff) {
			unlock := s.locks.Lock(key)
			if b, ok := s.batches.Get(key); ok && b.CreatedAt.Before(cutoff) {
				s.batches.Delete(key)
				removed++
				logger.Infof("reclaimed abandoned batch %s (created %s)", key, b.CreatedAt.Format(time.RFC3339))
			}
			unlock()
		}
		return true
	})
	return removed
}
