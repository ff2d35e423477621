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
	ErrProfileNotFound = errors.New("profile not found")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrProfileExists   = errors.New("profile already exists for user")
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

type ProfileRecord struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TopicRecord struct {
	ID        int64
	ProfileID int64
	Name      string
	TopicType string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ItemRecord struct {
	ID          int64
	TopicID     int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) Create(ctx context.Context, userID int64, name string) (ProfileRecord, error) {
	if r.pool == nil {
		return ProfileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(name) == "" {
		return ProfileRecord{}, fmt.Errorf("invalid profile create payload")
	}

	var record ProfileRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO profiles (user_id, name, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
RETURNING id, user_id, name, created_at, updated_at
`, userID, strings.TrimSpace(name)).Scan(
		&record.ID, &record.UserID, &record.Name, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ProfileRecord{}, ErrProfileExists
		}
		return ProfileRecord{}, fmt.Errorf("create profile: %w", err)
	}

	return record, nil
}

func (r *ProfileRepo) FindByUserID(ctx context.Context, userID int64) (ProfileRecord, error) {
	if r.pool == nil {
		return ProfileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return ProfileRecord{}, ErrProfileNotFound
	}

	var record ProfileRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, created_at, updated_at
FROM profiles
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&record.ID, &record.UserID, &record.Name, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrProfileNotFound
		}
		return ProfileRecord{}, fmt.Errorf("find profile by user id: %w", err)
	}

	return record, nil
}

func (r *ProfileRepo) FindByID(ctx context.Context, profileID int64) (ProfileRecord, error) {
	if r.pool == nil {
		return ProfileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 {
		return ProfileRecord{}, ErrProfileNotFound
	}

	var record ProfileRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, created_at, updated_at
FROM profiles
WHERE id = $1
LIMIT 1
`, profileID).Scan(&record.ID, &record.UserID, &record.Name, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrProfileNotFound
		}
		return ProfileRecord{}, fmt.Errorf("find profile by id: %w", err)
	}

	return record, nil
}

func (r *ProfileRepo) CreateTopic(ctx context.Context, profileID int64, name, topicType string) (TopicRecord, error) {
	if r.pool == nil {
		return TopicRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 || strings.TrimSpace(name) == "" {
		return TopicRecord{}, fmt.Errorf("invalid topic create payload")
	}

	var record TopicRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO profile_topics (profile_id, name, topic_type, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
RETURNING id, profile_id, name, topic_type, created_at, updated_at
`, profileID, strings.TrimSpace(name), topicType).Scan(
		&record.ID, &record.ProfileID, &record.Name, &record.TopicType, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return TopicRecord{}, fmt.Errorf("create profile topic: %w", err)
	}

	return record, nil
}

func (r *ProfileRepo) ListTopics(ctx context.Context, profileID int64) ([]TopicRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if profileID <= 0 {
		return nil, fmt.Errorf("invalid profile id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, profile_id, name, topic_type, created_at, updated_at
FROM profile_topics
WHERE profile_id = $1
ORDER BY id
`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list profile topics: %w", err)
	}
	defer rows.Close()

	var topics []TopicRecord
	for rows.Next() {
		var record TopicRecord
		if err := rows.Scan(&record.ID, &record.ProfileID, &record.Name, &record.TopicType, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile topic: %w", err)
		}
		topics = append(topics, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile topics: %w", err)
	}

	return topics, nil
}

func (r *ProfileRepo) FindTopic(ctx context.Context, topicID int64) (TopicRecord, error) {
	if r.pool == nil {
		return TopicRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if topicID <= 0 {
		return TopicRecord{}, ErrTopicNotFound
	}

	var record TopicRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, profile_id, name, topic_type, created_at, updated_at
FROM profile_topics
WHERE id = $1
LIMIT 1
`, topicID).Scan(&record.ID, &record.ProfileID, &record.Name, &record.TopicType, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TopicRecord{}, ErrTopicNotFound
		}
		return TopicRecord{}, fmt.Errorf("find topic by id: %w", err)
	}

	return record, nil
}

func (r *ProfileRepo) CreateItem(ctx context.Context, topicID int64, name, description string) (ItemRecord, error) {
	if r.pool == nil {
		return ItemRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if topicID <= 0 || strings.TrimSpace(name) == "" {
		return ItemRecord{}, fmt.Errorf("invalid item create payload")
	}

	var record ItemRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO profile_items (topic_id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
RETURNING id, topic_id, name, description, created_at, updated_at
`, topicID, strings.TrimSpace(name), description).Scan(
		&record.ID, &record.TopicID, &record.Name, &record.Description, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return ItemRecord{}, fmt.Errorf("create profile item: %w", err)
	}

	return record, nil
}

func (r *ProfileRepo) ListItems(ctx context.Context, topicID int64) ([]ItemRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if topicID <= 0 {
		return nil, fmt.Errorf("invalid topic id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, topic_id, name, description, created_at, updated_at
FROM profile_items
WHERE topic_id = $1
ORDER BY id
`, topicID)
	if err != nil {
		return nil, fmt.Errorf("list topic items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var record ItemRecord
		if err := rows.Scan(&record.ID, &record.TopicID, &record.Name, &record.Description, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan topic item: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic items: %w", err)
	}

	return items, nil
}
