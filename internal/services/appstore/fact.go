package appstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HashReceiptData returns the lowercase hex SHA-256 digest of the raw
// receipt bytes. The same bytes always map to the same hash, so lookups by
// hash never need the blob itself.
func HashReceiptData(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Canonicalize reduces a verification response to the durable receipt fact.
// The transaction id comes from the first entry of the receipt chain; the
// expiration is the latest expires_date_ms across all entries. A chain with
// no expiration dates canonicalizes to the epoch, which reads as expired.
func Canonicalize(resp VerificationResponse, receiptData []byte) (ReceiptFact, error) {
	if len(resp.Transactions) == 0 {
		return ReceiptFact{}, fmt.Errorf("verification response has no transactions: %w", ErrInvalidReceipt)
	}
	transactionID := resp.Transactions[0].OriginalTransactionID
	if transactionID == "" {
		return ReceiptFact{}, fmt.Errorf("verification response has no transaction id: %w", ErrInvalidReceipt)
	}

	var maxExpiresMS int64
	for _, tx := range resp.Transactions {
		if tx.ExpiresAtMS > maxExpiresMS {
			maxExpiresMS = tx.ExpiresAtMS
		}
	}

	return ReceiptFact{
		TransactionID:   transactionID,
		ExpirationTime:  time.UnixMilli(maxExpiresMS).UTC(),
		Environment:     resp.Environment,
		ReceiptData:     receiptData,
		ReceiptDataHash: HashReceiptData(receiptData),
	}, nil
}
