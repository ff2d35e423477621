package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MediaRepo struct {
	pool *pgxpool.Pool
}

type MediaRecord struct {
	ID          int64
	ProfileID   int64
	ObjectKey   string
	ContentType string
	CreatedAt   time.Time
}

func NewMediaRepo(pool *pgxpool.Pool) *MediaRepo {
	return &MediaRepo{pool: pool}
}

func (r *MediaRepo) Create(ctx context.Context, profileID int64, objectKey, contentType string) (MediaRecord, error) {
	if r.pool == nil {
		return MediaRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 || strings.TrimSpace(objectKey) == "" {
		return MediaRecord{}, fmt.Errorf("invalid media create payload")
	}

	var record MediaRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO media (profile_id, object_key, content_type, created_at)
VALUES ($1, $2, $3, NOW())
RETURNING id, profile_id, object_key, content_type, created_at
`, profileID, objectKey, contentType).Scan(
		&record.ID, &record.ProfileID, &record.ObjectKey, &record.ContentType, &record.CreatedAt)
	if err != nil {
		return MediaRecord{}, fmt.Errorf("create media row: %w", err)
	}

	return record, nil
}

func (r *MediaRepo) ListForProfile(ctx context.Context, profileID int64) ([]MediaRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 {
		return nil, fmt.Errorf("invalid profile id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, profile_id, object_key, content_type, created_at
FROM media
WHERE profile_id = $1
ORDER BY id
`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list media rows: %w", err)
	}
	defer rows.Close()

	var records []MediaRecord
	for rows.Next() {
		var record MediaRecord
		if err := rows.Scan(&record.ID, &record.ProfileID, &record.ObjectKey, &record.ContentType, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media rows: %w", err)
	}

	return records, nil
}
