package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEntryNotFound = errors.New("journal entry not found")

type JournalRepo struct {
	pool *pgxpool.Pool
}

type EntryRecord struct {
	ID        int64
	ProfileID int64
	Text      string
	Emoji     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewJournalRepo(pool *pgxpool.Pool) *JournalRepo {
	return &JournalRepo{pool: pool}
}

func (r *JournalRepo) CreateEntry(ctx context.Context, profileID int64, text, emoji string) (EntryRecord, error) {
	if r.pool == nil {
		return EntryRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 || strings.TrimSpace(text) == "" {
		return EntryRecord{}, fmt.Errorf("invalid journal entry payload")
	}

	var record EntryRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO journal_entries (profile_id, text, emoji, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
RETURNING id, profile_id, text, emoji, created_at, updated_at
`, profileID, text, emoji).Scan(
		&record.ID, &record.ProfileID, &record.Text, &record.Emoji, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return EntryRecord{}, fmt.Errorf("create journal entry: %w", err)
	}

	return record, nil
}

func (r *JournalRepo) ListEntries(ctx context.Context, profileID int64, limit int) ([]EntryRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 {
		return nil, fmt.Errorf("invalid profile id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, profile_id, text, emoji, created_at, updated_at
FROM journal_entries
WHERE profile_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryRecord
	for rows.Next() {
		var record EntryRecord
		if err := rows.Scan(&record.ID, &record.ProfileID, &record.Text, &record.Emoji, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, nil
}

func (r *JournalRepo) FindEntry(ctx context.Context, entryID int64) (EntryRecord, error) {
	if r.pool == nil {
		return EntryRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if entryID <= 0 {
		return EntryRecord{}, ErrEntryNotFound
	}

	var record EntryRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, profile_id, text, emoji, created_at, updated_at
FROM journal_entries
WHERE id = $1
LIMIT 1
`, entryID).Scan(&record.ID, &record.ProfileID, &record.Text, &record.Emoji, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EntryRecord{}, ErrEntryNotFound
		}
		return EntryRecord{}, fmt.Errorf("find journal entry: %w", err)
	}

	return record, nil
}
