package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAccessorNotFound = errors.New("accessor not found")
	ErrAccessorExists   = errors.New("accessor already granted for user")
)

type AccessorRepo struct {
	pool *pgxpool.Pool
}

type AccessorRecord struct {
	ID         int64
	ProfileID  int64
	UserID     int64
	CanWrite   bool
	IsAccepted bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewAccessorRepo(pool *pgxpool.Pool) *AccessorRepo {
	return &AccessorRepo{pool: pool}
}

func (r *AccessorRepo) Create(ctx context.Context, profileID, userID int64, canWrite bool) (AccessorRecord, error) {
	if r.pool == nil {
		return AccessorRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 || userID <= 0 {
		return AccessorRecord{}, fmt.Errorf("invalid accessor create payload")
	}

	var record AccessorRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO accessors (profile_id, user_id, can_write, is_accepted, created_at, updated_at)
VALUES ($1, $2, $3, FALSE, NOW(), NOW())
RETURNING id, profile_id, user_id, can_write, is_accepted, created_at, updated_at
`, profileID, userID, canWrite).Scan(
		&record.ID, &record.ProfileID, &record.UserID, &record.CanWrite, &record.IsAccepted,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return AccessorRecord{}, ErrAccessorExists
		}
		return AccessorRecord{}, fmt.Errorf("create accessor: %w", err)
	}

	return record, nil
}

func (r *AccessorRepo) Accept(ctx context.Context, accessorID, userID int64) (AccessorRecord, error) {
	if r.pool == nil {
		return AccessorRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if accessorID <= 0 || userID <= 0 {
		return AccessorRecord{}, ErrAccessorNotFound
	}

	var record AccessorRecord
	err := r.pool.QueryRow(ctx, `
UPDATE accessors
SET is_accepted = TRUE, updated_at = NOW()
WHERE id = $1
  AND user_id = $2
RETURNING id, profile_id, user_id, can_write, is_accepted, created_at, updated_at
`, accessorID, userID).Scan(
		&record.ID, &record.ProfileID, &record.UserID, &record.CanWrite, &record.IsAccepted,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessorRecord{}, ErrAccessorNotFound
		}
		return AccessorRecord{}, fmt.Errorf("accept accessor: %w", err)
	}

	return record, nil
}

func (r *AccessorRepo) ListForProfile(ctx context.Context, profileID int64) ([]AccessorRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 {
		return nil, fmt.Errorf("invalid profile id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, profile_id, user_id, can_write, is_accepted, created_at, updated_at
FROM accessors
WHERE profile_id = $1
ORDER BY id
`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list accessors: %w", err)
	}
	defer rows.Close()

	var accessors []AccessorRecord
	for rows.Next() {
		var record AccessorRecord
		if err := rows.Scan(&record.ID, &record.ProfileID, &record.UserID, &record.CanWrite, &record.IsAccepted, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan accessor: %w", err)
		}
		accessors = append(accessors, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accessors: %w", err)
	}

	return accessors, nil
}

// FindGrant returns the accepted grant a user holds on a profile, if any.
func (r *AccessorRepo) FindGrant(ctx context.Context, profileID, userID int64) (AccessorRecord, error) {
	if r.pool == nil {
		return AccessorRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 || userID <= 0 {
		return AccessorRecord{}, ErrAccessorNotFound
	}

	var record AccessorRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, profile_id, user_id, can_write, is_accepted, created_at, updated_at
FROM accessors
WHERE profile_id = $1
  AND user_id = $2
  AND is_accepted = TRUE
LIMIT 1
`, profileID, userID).Scan(
		&record.ID, &record.ProfileID, &record.UserID, &record.CanWrite, &record.IsAccepted,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessorRecord{}, ErrAccessorNotFound
		}
		return AccessorRecord{}, fmt.Errorf("find accessor grant: %w", err)
	}

	return record, nil
}
