package appstore

import (
	"context"
	"errors"
	"testing"
	"time"

	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
)

type verifierStub struct {
	calls int
	resp  VerificationResponse
	err   error
}

func (s *verifierStub) Verify(context.Context, []byte) (VerificationResponse, error) {
	s.calls++
	return s.resp, s.err
}

// receiptStoreStub mirrors the store's upsert semantics in memory: one row
// per transaction id, reattached to the submitting user, expiration moving
// only forward.
type receiptStoreStub struct {
	records map[string]pgrepo.ReceiptRecord
	nextID  int64
	upserts int
}

func (s *receiptStoreStub) UpsertByTransactionID(_ context.Context, userID int64, upsert pgrepo.ReceiptUpsert) (pgrepo.ReceiptRecord, error) {
	s.upserts++
	if s.records == nil {
		s.records = make(map[string]pgrepo.ReceiptRecord)
	}
	record, ok := s.records[upsert.TransactionID]
	if !ok {
		s.nextID++
		record = pgrepo.ReceiptRecord{
			ID:             s.nextID,
			TransactionID:  upsert.TransactionID,
			ExpirationTime: upsert.ExpirationTime,
		}
	}
	record.UserID = userID
	record.ReceiptData = upsert.ReceiptData
	record.ReceiptDataHash = upsert.ReceiptDataHash
	record.Environment = upsert.Environment
	if upsert.ExpirationTime.After(record.ExpirationTime) {
		record.ExpirationTime = upsert.ExpirationTime
	}
	s.records[upsert.TransactionID] = record
	return record, nil
}

func (s *receiptStoreStub) FindByHash(_ context.Context, hash string) (pgrepo.ReceiptRecord, error) {
	for _, record := range s.records {
		if record.ReceiptDataHash == hash {
			return record, nil
		}
	}
	return pgrepo.ReceiptRecord{}, pgrepo.ErrReceiptNotFound
}

func verifiedResponse(txID string, expiresAt time.Time) VerificationResponse {
	return VerificationResponse{
		Environment: EnvironmentProduction,
		Transactions: []Transaction{
			{OriginalTransactionID: txID, ExpiresAtMS: expiresAt.UnixMilli()},
		},
	}
}

func TestSubmitReceiptStoresCanonicalReceipt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(30 * 24 * time.Hour)

	store := &receiptStoreStub{}
	svc := NewService(&verifierStub{resp: verifiedResponse("orig-1", expires)}, store)
	svc.now = func() time.Time { return now }

	result, err := svc.SubmitReceipt(context.Background(), 101, []byte("receipt-bytes"))
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	if !result.IsActive {
		t.Fatalf("receipt expiring in the future must be active")
	}
	if result.TransactionID != "orig-1" {
		t.Fatalf("unexpected transaction id: %s", result.TransactionID)
	}
	if result.ReceiptDataHash != HashReceiptData([]byte("receipt-bytes")) {
		t.Fatalf("unexpected receipt hash: %s", result.ReceiptDataHash)
	}

	stored := store.records["orig-1"]
	if stored.UserID != 101 {
		t.Fatalf("receipt not attached to submitter: got user %d", stored.UserID)
	}
	if !stored.ExpirationTime.Equal(expires.Truncate(time.Millisecond)) {
		t.Fatalf("unexpected stored expiration: %v", stored.ExpirationTime)
	}
}

func TestSubmitReceiptTransfersSubscriptionToLastVerifyingSubmitter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(30 * 24 * time.Hour)

	store := &receiptStoreStub{}
	svc := NewService(&verifierStub{resp: verifiedResponse("orig-1", expires)}, store)
	svc.now = func() time.Time { return now }

	if _, err := svc.SubmitReceipt(context.Background(), 101, []byte("receipt-bytes")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.SubmitReceipt(context.Background(), 202, []byte("receipt-bytes")); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if len(store.records) != 1 {
		t.Fatalf("expected a single row per transaction id, got %d", len(store.records))
	}
	if got := store.records["orig-1"].UserID; got != 202 {
		t.Fatalf("subscription must follow the last verifying submitter: got user %d", got)
	}
}

func TestSubmitReceiptExpirationNeverRegresses(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	late := now.Add(60 * 24 * time.Hour)
	early := now.Add(10 * 24 * time.Hour)

	store := &receiptStoreStub{}
	verifier := &verifierStub{resp: verifiedResponse("orig-1", late)}
	svc := NewService(verifier, store)
	svc.now = func() time.Time { return now }

	if _, err := svc.SubmitReceipt(context.Background(), 101, []byte("receipt-bytes")); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	verifier.resp = verifiedResponse("orig-1", early)
	result, err := svc.SubmitReceipt(context.Background(), 101, []byte("stale-receipt"))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !result.ExpirationTime.Equal(late.Truncate(time.Millisecond)) {
		t.Fatalf("expiration regressed: got %v want %v", result.ExpirationTime, late)
	}
}

func TestSubmitReceiptExpiredChainIsInactive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &receiptStoreStub{}
	svc := NewService(&verifierStub{resp: verifiedResponse("orig-old", now.Add(-time.Hour))}, store)
	svc.now = func() time.Time { return now }

	result, err := svc.SubmitReceipt(context.Background(), 101, []byte("expired-receipt"))
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	if result.IsActive {
		t.Fatalf("receipt expired in the past must not be active")
	}
}

func TestSubmitReceiptValidation(t *testing.T) {
	svc := NewService(&verifierStub{}, &receiptStoreStub{})

	if _, err := svc.SubmitReceipt(context.Background(), 0, []byte("receipt")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}
	if _, err := svc.SubmitReceipt(context.Background(), 101, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty receipt, got %v", err)
	}
}

func TestSubmitReceiptPropagatesVerifierErrors(t *testing.T) {
	store := &receiptStoreStub{}
	svc := NewService(&verifierStub{err: ErrRetryable}, store)

	_, err := svc.SubmitReceipt(context.Background(), 101, []byte("receipt"))
	if !errors.Is(err, ErrRetryable) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if store.upserts != 0 {
		t.Fatalf("nothing may be persisted when verification fails")
	}
}

func TestClassifyReceiptDoesNotPersist(t *testing.T) {
	store := &receiptStoreStub{}
	svc := NewService(&verifierStub{
		resp: VerificationResponse{
			Environment:  EnvironmentSandbox,
			Transactions: []Transaction{{OriginalTransactionID: "orig-sb"}},
		},
	}, store)

	env, err := svc.ClassifyReceipt(context.Background(), []byte("sandbox-receipt"))
	if err != nil {
		t.Fatalf("classify receipt: %v", err)
	}
	if env != EnvironmentSandbox {
		t.Fatalf("unexpected environment: %s", env)
	}
	if store.upserts != 0 {
		t.Fatalf("classification must not touch the store, got %d upserts", store.upserts)
	}
}

func TestReceiptExists(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &receiptStoreStub{}
	svc := NewService(&verifierStub{resp: verifiedResponse("orig-1", now.Add(time.Hour))}, store)
	svc.now = func() time.Time { return now }

	if _, err := svc.SubmitReceipt(context.Background(), 101, []byte("receipt-bytes")); err != nil {
		t.Fatalf("submit receipt: %v", err)
	}

	exists, err := svc.ReceiptExists(context.Background(), HashReceiptData([]byte("receipt-bytes")))
	if err != nil {
		t.Fatalf("receipt exists: %v", err)
	}
	if !exists {
		t.Fatalf("stored receipt must be reported as existing")
	}

	exists, err = svc.ReceiptExists(context.Background(), HashReceiptData([]byte("never-stored")))
	if err != nil {
		t.Fatalf("receipt exists: %v", err)
	}
	if exists {
		t.Fatalf("unknown hash must be reported as absent")
	}
}
