package appstore

import (
	"errors"
	"testing"
	"time"
)

func TestHashReceiptDataIsDeterministicLowercaseHex(t *testing.T) {
	hash := HashReceiptData([]byte("abc"))
	if hash != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected digest for 'abc': %s", hash)
	}
	if hash != HashReceiptData([]byte("abc")) {
		t.Fatalf("digest is not deterministic")
	}
	if hash == HashReceiptData([]byte("abd")) {
		t.Fatalf("different inputs must not collide on this input pair")
	}
}

func TestCanonicalizeUsesMaxExpirationAcrossChain(t *testing.T) {
	resp := VerificationResponse{
		Environment: EnvironmentProduction,
		Transactions: []Transaction{
			{OriginalTransactionID: "orig-1", ExpiresAtMS: 1_700_000_000_000},
			{OriginalTransactionID: "orig-1", ExpiresAtMS: 1_800_000_000_000},
			{OriginalTransactionID: "orig-1", ExpiresAtMS: 1_750_000_000_000},
		},
	}

	fact, err := Canonicalize(resp, []byte("receipt"))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if fact.TransactionID != "orig-1" {
		t.Fatalf("unexpected transaction id: %s", fact.TransactionID)
	}
	if want := time.UnixMilli(1_800_000_000_000).UTC(); !fact.ExpirationTime.Equal(want) {
		t.Fatalf("expiration must be the chain maximum: got %v want %v", fact.ExpirationTime, want)
	}
	if fact.Environment != EnvironmentProduction {
		t.Fatalf("unexpected environment: %s", fact.Environment)
	}
	if fact.ReceiptDataHash != HashReceiptData([]byte("receipt")) {
		t.Fatalf("hash does not match the raw receipt bytes")
	}
}

func TestCanonicalizeWithoutExpirationReadsAsExpired(t *testing.T) {
	resp := VerificationResponse{
		Environment:  EnvironmentSandbox,
		Transactions: []Transaction{{OriginalTransactionID: "orig-free"}},
	}

	fact, err := Canonicalize(resp, []byte("receipt"))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if !fact.ExpirationTime.Equal(time.UnixMilli(0).UTC()) {
		t.Fatalf("missing expiration must canonicalize to the epoch, got %v", fact.ExpirationTime)
	}
	if !fact.ExpirationTime.Before(time.Now()) {
		t.Fatalf("epoch expiration must read as expired")
	}
}

func TestCanonicalizeRejectsEmptyChain(t *testing.T) {
	_, err := Canonicalize(VerificationResponse{Environment: EnvironmentProduction}, []byte("receipt"))
	if !errors.Is(err, ErrInvalidReceipt) {
		t.Fatalf("expected invalid receipt for empty chain, got %v", err)
	}

	_, err = Canonicalize(VerificationResponse{
		Environment:  EnvironmentProduction,
		Transactions: []Transaction{{ExpiresAtMS: 1}},
	}, []byte("receipt"))
	if !errors.Is(err, ErrInvalidReceipt) {
		t.Fatalf("expected invalid receipt for missing transaction id, got %v", err)
	}
}
