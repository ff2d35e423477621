package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowmetools/km-api-sub001/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("media resource not found")
	ErrForbidden  = errors.New("write access not granted")
)

const (
	signedURLTTL  = 5 * time.Minute
	maxUploadSize = 25 << 20
)

type Store interface {
	Create(ctx context.Context, profileID int64, objectKey, contentType string) (postgres.MediaRecord, error)
	ListForProfile(ctx context.Context, profileID int64) ([]postgres.MediaRecord, error)
}

type ProfileStore interface {
	FindByID(ctx context.Context, profileID int64) (postgres.ProfileRecord, error)
}

type AccessorStore interface {
	FindGrant(ctx context.Context, profileID, userID int64) (postgres.AccessorRecord, error)
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service stores media attachments for profiles: the blob goes to object
// storage, the row to postgres. Uploads require write access on the
// profile; listings require read access.
type Service struct {
	store     Store
	profiles  ProfileStore
	accessors AccessorStore
	storage   ObjectStorage
	now       func() time.Time
}

type Media struct {
	ID          int64
	ProfileID   int64
	ContentType string
	URL         string
	CreatedAt   time.Time
}

func NewService(store Store, profiles ProfileStore, accessors AccessorStore, storage ObjectStorage) *Service {
	return &Service{
		store:     store,
		profiles:  profiles,
		accessors: accessors,
		storage:   storage,
		now:       time.Now,
	}
}

func (s *Service) Upload(ctx context.Context, requesterID, profileID int64, fileName, contentType string, body io.Reader, size int64) (Media, error) {
	if requesterID <= 0 || body == nil || size <= 0 {
		return Media{}, ErrValidation
	}
	if size > maxUploadSize {
		return Media{}, fmt.Errorf("upload exceeds %d bytes: %w", int64(maxUploadSize), ErrValidation)
	}
	if s.store == nil || s.storage == nil {
		return Media{}, fmt.Errorf("media dependencies are not configured")
	}

	profile, err := s.resolveProfile(ctx, profileID)
	if err != nil {
		return Media{}, err
	}
	if err := s.requireWrite(ctx, profile, requesterID); err != nil {
		return Media{}, err
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return Media{}, fmt.Errorf("ensure bucket: %w", err)
	}

	objectKey := buildObjectKey(profile.ID, fileName, s.now().UTC())

	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.PutObject(ctx, objectKey, body, size, contentType); err != nil {
		return Media{}, fmt.Errorf("put object: %w", err)
	}

	record, err := s.store.Create(ctx, profile.ID, objectKey, contentType)
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return Media{}, fmt.Errorf("create media record: %w", err)
	}

	url, err := s.storage.PresignGet(ctx, record.ObjectKey, signedURLTTL)
	if err != nil {
		return Media{}, fmt.Errorf("presign media url: %w", err)
	}

	return Media{
		ID:          record.ID,
		ProfileID:   record.ProfileID,
		ContentType: record.ContentType,
		URL:         url,
		CreatedAt:   record.CreatedAt,
	}, nil
}

func (s *Service) List(ctx context.Context, requesterID, profileID int64) ([]Media, error) {
	if requesterID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return nil, fmt.Errorf("media dependencies are not configured")
	}

	profile, err := s.resolveProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRead(ctx, profile, requesterID); err != nil {
		return nil, err
	}

	records, err := s.store.ListForProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("list media records: %w", err)
	}

	media := make([]Media, 0, len(records))
	for _, record := range records {
		url, err := s.storage.PresignGet(ctx, record.ObjectKey, signedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign media url: %w", err)
		}
		media = append(media, Media{
			ID:          record.ID,
			ProfileID:   record.ProfileID,
			ContentType: record.ContentType,
			URL:         url,
			CreatedAt:   record.CreatedAt,
		})
	}

	return media, nil
}

func (s *Service) resolveProfile(ctx context.Context, profileID int64) (postgres.ProfileRecord, error) {
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return postgres.ProfileRecord{}, ErrNotFound
		}
		return postgres.ProfileRecord{}, err
	}
	return profile, nil
}

func (s *Service) requireRead(ctx context.Context, profile postgres.ProfileRecord, requesterID int64) error {
	if profile.UserID == requesterID {
		return nil
	}
	_, err := s.accessors.FindGrant(ctx, profile.ID, requesterID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccessorNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) requireWrite(ctx context.Context, profile postgres.ProfileRecord, requesterID int64) error {
	if profile.UserID == requesterID {
		return nil
	}
	grant, err := s.accessors.FindGrant(ctx, profile.ID, requesterID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccessorNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !grant.CanWrite {
		return ErrForbidden
	}
	return nil
}

func buildObjectKey(profileID int64, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("profiles/%d/media/%s_%s%s", profileID, now.Format("20060102T150405"), uuid.NewString(), ext)
}
