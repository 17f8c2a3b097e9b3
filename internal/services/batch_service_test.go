package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngenest/SecretSanta/internal/models"
	"github.com/ngenest/SecretSanta/internal/payment"
	"github.com/ngenest/SecretSanta/internal/store"
)

type fakeVerifier struct {
	mu       sync.Mutex
	payments map[string]models.PaymentDetails
	calls    int
}

func (f *fakeVerifier) Retrieve(ctx context.Context, paymentID string) (models.PaymentDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	details, ok := f.payments[paymentID]
	if !ok {
		return models.PaymentDetails{}, payment.ErrPaymentNotFound
	}
	return details, nil
}

type fakeInitiator struct {
	lastBatchID  string
	lastAmount   int64
	lastCurrency string
}

func (f *fakeInitiator) CreatePaymentRequest(ctx context.Context, batchID string, amount int64, currency string) (payment.Request, error) {
	f.lastBatchID = batchID
	f.lastAmount = amount
	f.lastCurrency = currency
	return payment.Request{PaymentID: "pi_test", ClientHandle: "pi_test_secret"}, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	failNext bool
	calls    int
}

func (f *fakeDispatcher) DispatchBatch(ctx context.Context, batch models.NotificationBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext {
		f.failNext = false
		return errors.New("smtp connection refused")
	}
	return nil
}

const (
	testFeeAmount   = int64(199)
	testFeeCurrency = "usd"
)

func newTestBatchService(verifier *fakeVerifier, dispatcher *fakeDispatcher) (*BatchService, *fakeInitiator) {
	initiator := &fakeInitiator{}
	svc := NewBatchService(
		store.New[models.NotificationBatch](),
		verifier,
		initiator,
		dispatcher,
		Fee{Amount: testFeeAmount, Currency: testFeeCurrency},
		time.Second,
	)
	return svc, initiator
}

func testPayload() models.BatchPayload {
	return models.BatchPayload{
		EventName:      "Office Party",
		EventDate:      "2026-12-18",
		EventTypeLabel: "Secret Santa",
		Assignments: []models.Match{
			{
				Giver:    models.Participant{ID: "p1", Name: "Alice", Email: "alice@example.com"},
				Receiver: models.Participant{ID: "p2", Name: "Bob", Email: "bob@example.com"},
			},
		},
		AcknowledgmentLinks: map[string]string{"p1": "https://santa.example.com/confirm?token=abc"},
	}
}

func settled(batchID string) models.PaymentDetails {
	return models.PaymentDetails{
		Settled:      true,
		Amount:       testFeeAmount,
		Currency:     testFeeCurrency,
		BoundBatchID: batchID,
	}
}

func TestBatchService_ConsumeIfPaid_HappyPathThenGone(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	verifier.payments["P1"] = settled(batch.BatchID)

	sentAt, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	require.NoError(t, err)
	assert.False(t, sentAt.IsZero())
	assert.Equal(t, 1, dispatcher.calls)

	// Same call again: the batch is gone, nothing is re-sent.
	_, err = svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	assert.ErrorIs(t, err, ErrBatchNotFound)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestBatchService_ConsumeIfPaid_UnknownBatch(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	svc, _ := newTestBatchService(verifier, &fakeDispatcher{})

	_, err := svc.ConsumeIfPaid(context.Background(), "no-such-batch", "P1")
	assert.ErrorIs(t, err, ErrBatchNotFound)
	// Batch existence is checked before the payment is ever fetched.
	assert.Equal(t, 0, verifier.calls)
}

func TestBatchService_ConsumeIfPaid_NotSettled(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	details := settled(batch.BatchID)
	details.Settled = false
	verifier.payments["P1"] = details

	_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	assert.ErrorIs(t, err, ErrPaymentNotSettled)
	assert.Equal(t, 0, dispatcher.calls)

	// Batch stays CREATED for a later, settled payment.
	_, err = svc.GetBatch(batch.BatchID)
	assert.NoError(t, err)
}

func TestBatchService_ConsumeIfPaid_BoundToOtherBatch(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	verifier.payments["P2"] = settled("some-other-batch")

	_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P2")
	assert.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Equal(t, 0, dispatcher.calls)

	_, err = svc.GetBatch(batch.BatchID)
	assert.NoError(t, err)
}

func TestBatchService_ConsumeIfPaid_Underpaid(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	details := settled(batch.BatchID)
	details.Amount = 50
	verifier.payments["P1"] = details

	_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	assert.ErrorIs(t, err, ErrPaymentAmountInsufficient)
	assert.Equal(t, 0, dispatcher.calls)

	// Retry with a corrected payment succeeds.
	verifier.payments["P2"] = settled(batch.BatchID)
	_, err = svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P2")
	assert.NoError(t, err)
}

func TestBatchService_ConsumeIfPaid_WrongCurrency(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	details := settled(batch.BatchID)
	details.Currency = "eur"
	verifier.payments["P1"] = details

	_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	assert.ErrorIs(t, err, ErrPaymentCurrencyMismatch)
	assert.Equal(t, 0, dispatcher.calls)
}

func TestBatchService_ConsumeIfPaid_PaymentNotFound(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	svc, _ := newTestBatchService(verifier, &fakeDispatcher{})

	batch := svc.CreateBatch(testPayload())

	_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P-missing")
	assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
}

func TestBatchService_ConsumeIfPaid_DispatchFailureIsRetriable(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{failNext: true}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	verifier.payments["P1"] = settled(batch.BatchID)

	_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	assert.ErrorIs(t, err, ErrDispatchFailed)

	// The batch survived the failed dispatch; the same settled
	// payment clears it on retry.
	sentAt, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
	require.NoError(t, err)
	assert.False(t, sentAt.IsZero())
	assert.Equal(t, 2, dispatcher.calls)
}

func TestBatchService_ConsumeIfPaid_ConcurrentConsumersSingleDispatch(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestBatchService(verifier, dispatcher)

	batch := svc.CreateBatch(testPayload())
	verifier.payments["P1"] = settled(batch.BatchID)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConsumeIfPaid(context.Background(), batch.BatchID, "P1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrBatchNotFound)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one consume attempt may dispatch")
	assert.Equal(t, 1, dispatcher.calls)
}

func TestBatchService_CreatePaymentRequest(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	svc, initiator := newTestBatchService(verifier, &fakeDispatcher{})

	_, err := svc.CreatePaymentRequest(context.Background(), "no-such-batch")
	assert.ErrorIs(t, err, ErrBatchNotFound)

	batch := svc.CreateBatch(testPayload())
	req, err := svc.CreatePaymentRequest(context.Background(), batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "pi_test", req.PaymentID)
	assert.Equal(t, "pi_test_secret", req.ClientHandle)
	assert.Equal(t, batch.BatchID, initiator.lastBatchID)
	assert.Equal(t, testFeeAmount, initiator.lastAmount)
	assert.Equal(t, testFeeCurrency, initiator.lastCurrency)
}

func TestBatchService_SweepAbandoned(t *testing.T) {
	verifier := &fakeVerifier{payments: map[string]models.PaymentDetails{}}
	svc, _ := newTestBatchService(verifier, &fakeDispatcher{})

	// Age the first batch artificially.
	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old := svc.CreateBatch(testPayload())
	svc.now = time.Now
	fresh := svc.CreateBatch(testPayload())

	removed := svc.SweepAbandoned(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, err := svc.GetBatch(old.BatchID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, err = svc.GetBatch(fresh.BatchID)
	assert.NoError(t, err)
}
