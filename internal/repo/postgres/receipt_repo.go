package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrReceiptNotFound      = errors.New("receipt not found")
	ErrTransactionIDTaken   = errors.New("transaction id already persisted by a concurrent writer")
	ErrInvalidReceiptUpsert = errors.New("invalid receipt upsert payload")
)

type ReceiptRepo struct {
	pool *pgxpool.Pool
}

type ReceiptRecord struct {
	ID              int64
	UserID          int64
	ReceiptData     []byte
	ReceiptDataHash string
	TransactionID   string
	ExpirationTime  time.Time
	Environment     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReceiptUpsert carries the canonical verified-receipt fields into the store.
type ReceiptUpsert struct {
	TransactionID   string
	ExpirationTime  time.Time
	Environment     string
	ReceiptData     []byte
	ReceiptDataHash string
}

func NewReceiptRepo(pool *pgxpool.Pool) *ReceiptRepo {
	return &ReceiptRepo{pool: pool}
}

const receiptColumns = `id, user_id, receipt_data, receipt_data_hash, transaction_id, expiration_time, environment, created_at, updated_at`

// UpsertByTransactionID inserts or updates the single row keyed by the Apple
// original transaction id. A resubmission by a different user reattaches the
// row to that user (last verifying submitter wins); the expiration_time never
// moves backwards. The whole branch runs under a row lock so concurrent
// submissions for the same transaction id are serialized.
func (r *ReceiptRepo) UpsertByTransactionID(ctx context.Context, userID int64, upsert ReceiptUpsert) (ReceiptRecord, error) {
	if r.pool == nil {
		return ReceiptRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 ||
		strings.TrimSpace(upsert.TransactionID) == "" ||
		len(upsert.ReceiptData) == 0 ||
		len(upsert.ReceiptDataHash) != 64 {
		return ReceiptRecord{}, ErrInvalidReceiptUpsert
	}

	var record ReceiptRecord
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		existing, err := scanReceipt(tx.QueryRow(ctx, `
SELECT `+receiptColumns+`
FROM receipts
WHERE transaction_id = $1
FOR UPDATE
`, upsert.TransactionID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock receipt row: %w", err)
		}

		if errors.Is(err, pgx.ErrNoRows) {
			record, err = scanReceipt(tx.QueryRow(ctx, `
INSERT INTO receipts (
	user_id,
	receipt_data,
	receipt_data_hash,
	transaction_id,
	expiration_time,
	environment,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING `+receiptColumns+`
`, userID, upsert.ReceiptData, upsert.ReceiptDataHash, upsert.TransactionID, upsert.ExpirationTime.UTC(), upsert.Environment))
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "23505" {
					return ErrTransactionIDTaken
				}
				return fmt.Errorf("insert receipt: %w", err)
			}
			return nil
		}

		// Existing row: refresh blob/hash/environment, reattach the user and
		// advance the expiration monotonically.
		record, err = scanReceipt(tx.QueryRow(ctx, `
UPDATE receipts
SET
	user_id = $2,
	receipt_data = $3,
	receipt_data_hash = $4,
	expiration_time = GREATEST(expiration_time, $5),
	environment = $6,
	updated_at = NOW()
WHERE id = $1
RETURNING `+receiptColumns+`
`, existing.ID, userID, upsert.ReceiptData, upsert.ReceiptDataHash, upsert.ExpirationTime.UTC(), upsert.Environment))
		if err != nil {
			return fmt.Errorf("update receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReceiptRecord{}, err
	}

	return record, nil
}

func (r *ReceiptRepo) FindByHash(ctx context.Context, hash string) (ReceiptRecord, error) {
	if r.pool == nil {
		return ReceiptRecord{}, fmt.Errorf("postgres pool is nil")
	}
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != 64 {
		return ReceiptRecord{}, ErrReceiptNotFound
	}

	record, err := scanReceipt(r.pool.QueryRow(ctx, `
SELECT `+receiptColumns+`
FROM receipts
WHERE receipt_data_hash = $1
ORDER BY updated_at DESC
LIMIT 1
`, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceiptRecord{}, ErrReceiptNotFound
		}
		return ReceiptRecord{}, fmt.Errorf("find receipt by hash: %w", err)
	}

	return record, nil
}

// FindActiveForUser returns the user's receipt with the latest expiration
// still ahead of the given instant.
func (r *ReceiptRepo) FindActiveForUser(ctx context.Context, userID int64, now time.Time) (ReceiptRecord, error) {
	if r.pool == nil {
		return ReceiptRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return ReceiptRecord{}, fmt.Errorf("invalid user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	record, err := scanReceipt(r.pool.QueryRow(ctx, `
SELECT `+receiptColumns+`
FROM receipts
WHERE user_id = $1
  AND expiration_time > $2
ORDER BY expiration_time DESC
LIMIT 1
`, userID, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceiptRecord{}, ErrReceiptNotFound
		}
		return ReceiptRecord{}, fmt.Errorf("find active receipt: %w", err)
	}

	return record, nil
}

func scanReceipt(row pgx.Row) (ReceiptRecord, error) {
	var record ReceiptRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ReceiptData,
		&record.ReceiptDataHash,
		&record.TransactionID,
		&record.ExpirationTime,
		&record.Environment,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return ReceiptRecord{}, err
	}
	return record, nil
}
