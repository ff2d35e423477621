package appstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/knowmetools/km-api-sub001/internal/repo/postgres"
)

// ReceiptVerifier checks the receipt with Apple and reports what Apple said.
type ReceiptVerifier interface {
	Verify(ctx context.Context, receiptData []byte) (VerificationResponse, error)
}

// ReceiptStore persists canonical receipts keyed by transaction id.
type ReceiptStore interface {
	UpsertByTransactionID(ctx context.Context, userID int64, upsert postgres.ReceiptUpsert) (postgres.ReceiptRecord, error)
	FindByHash(ctx context.Context, hash string) (postgres.ReceiptRecord, error)
}

// Service is the receipt pipeline: verify with Apple, canonicalize the
// response and persist the result under a per-transaction lock.
type Service struct {
	verifier ReceiptVerifier
	receipts ReceiptStore
	now      func() time.Time
}

func NewService(verifier ReceiptVerifier, receipts ReceiptStore) *Service {
	return &Service{
		verifier: verifier,
		receipts: receipts,
		now:      time.Now,
	}
}

// SubmitResult reports the stored state of a submitted receipt.
type SubmitResult struct {
	IsActive        bool
	TransactionID   string
	ReceiptDataHash string
	ExpirationTime  time.Time
	Environment     Environment
}

// SubmitReceipt verifies the receipt and attaches it to the user. If another
// user had previously submitted the same transaction id, the subscription
// moves to the verifying submitter. Activity is computed against the stored
// expiration, never persisted.
func (s *Service) SubmitReceipt(ctx context.Context, userID int64, receiptData []byte) (SubmitResult, error) {
	if userID <= 0 {
		return SubmitResult{}, fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	if len(receiptData) == 0 {
		return SubmitResult{}, fmt.Errorf("receipt data is required: %w", ErrValidation)
	}

	resp, err := s.verifier.Verify(ctx, receiptData)
	if err != nil {
		return SubmitResult{}, err
	}

	fact, err := Canonicalize(resp, receiptData)
	if err != nil {
		return SubmitResult{}, err
	}

	record, err := s.receipts.UpsertByTransactionID(ctx, userID, postgres.ReceiptUpsert{
		TransactionID:   fact.TransactionID,
		ExpirationTime:  fact.ExpirationTime,
		Environment:     string(fact.Environment),
		ReceiptData:     fact.ReceiptData,
		ReceiptDataHash: fact.ReceiptDataHash,
	})
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidReceiptUpsert) {
			return SubmitResult{}, fmt.Errorf("canonical receipt rejected by store: %w", ErrValidation)
		}
		return SubmitResult{}, err
	}

	return SubmitResult{
		IsActive:        record.ExpirationTime.After(s.now().UTC()),
		TransactionID:   record.TransactionID,
		ReceiptDataHash: record.ReceiptDataHash,
		ExpirationTime:  record.ExpirationTime,
		Environment:     Environment(record.Environment),
	}, nil
}

// ClassifyReceipt verifies the receipt and reports which Apple environment
// produced it. Nothing is persisted.
func (s *Service) ClassifyReceipt(ctx context.Context, receiptData []byte) (Environment, error) {
	if len(receiptData) == 0 {
		return "", fmt.Errorf("receipt data is required: %w", ErrValidation)
	}

	resp, err := s.verifier.Verify(ctx, receiptData)
	if err != nil {
		return "", err
	}
	fact, err := Canonicalize(resp, receiptData)
	if err != nil {
		return "", err
	}
	return fact.Environment, nil
}

// ReceiptExists reports whether a receipt with the given hash has been
// stored. Unknown and malformed hashes both read as absent.
func (s *Service) ReceiptExists(ctx context.Context, hash string) (bool, error) {
	_, err := s.receipts.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, postgres.ErrReceiptNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
