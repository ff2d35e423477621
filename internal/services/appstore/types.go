package appstore

import (
	"errors"
	"time"
)

var (
	ErrValidation = errors.New("validation error")

	// ErrInvalidReceipt: Apple refused the receipt (non-zero status or a
	// payload with no transactions).
	ErrInvalidReceipt = errors.New("invalid receipt")
	// ErrTransport: network failure or a non-200 answer from the
	// verification endpoint.
	ErrTransport = errors.New("apple verification transport failure")
	// ErrRetryable: Apple asked for a retry and the retry budget ran out;
	// the client may resubmit later.
	ErrRetryable = errors.New("apple verification temporarily unavailable")
)

type Environment string

const (
	EnvironmentProduction Environment = "PRODUCTION"
	EnvironmentSandbox    Environment = "SANDBOX"
)

// Transaction is one entry of the verification response's receipt chain.
type Transaction struct {
	OriginalTransactionID string
	ExpiresAtMS           int64
}

// VerificationResponse is the parsed answer from Apple's verification
// endpoint. It is transient and never persisted.
type VerificationResponse struct {
	Status       int
	Environment  Environment
	Retryable    bool
	Transactions []Transaction
}

// ReceiptFact is the canonical form of a verified receipt: everything the
// store needs, nothing else.
type ReceiptFact struct {
	TransactionID   string
	ExpirationTime  time.Time
	Environment     Environment
	ReceiptData     []byte
	ReceiptDataHash string
}
