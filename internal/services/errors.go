package services

import "errors"

// Error taxonomy for the batch/payment flow. All payment errors are
// terminal for the given artifact: the caller needs a new, correct
// payment. ErrDispatchFailed is the one transient case and is safe to
// retry with the same settled payment.
var (
	// ErrInvalidDrawRequest means the draw input failed edge
	// validation (duplicate ids, missing contact details, ...).
	ErrInvalidDrawRequest = errors.New("invalid draw request")

	// ErrBatchNotFound means the batch never existed or was already
	// consumed. A second consume attempt after a successful send
	// reports this rather than re-sending.
	ErrBatchNotFound = errors.New("notification batch not found")

	// ErrPaymentNotSettled means the payment exists but funds have
	// not been captured yet.
	ErrPaymentNotSettled = errors.New("payment is not settled")

	// ErrPaymentMismatch means the payment's metadata binds it to a
	// different batch than the one being consumed.
	ErrPaymentMismatch = errors.New("payment is bound to a different batch")

	// ErrPaymentAmountInsufficient means the settled amount is below
	// the notification fee.
	ErrPaymentAmountInsufficient = errors.New("payment amount is below the notification fee")

	// ErrPaymentCurrencyMismatch means the payment settled in the
	// wrong currency.
	ErrPaymentCurrencyMismatch = errors.New("payment currency does not match the notification fee")

	// ErrDispatchFailed means one or more notifications could not be
	// delivered. The batch is kept so the same payment can be
	// re-presented.
	ErrDispatchFailed = errors.New("notification dispatch failed")
)
