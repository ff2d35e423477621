package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	"github.com/knowmetools/km-api-sub001/internal/services/premium"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("journal resource not found")
	ErrForbidden  = errors.New("write access not granted")
)

const maxEntryTextLen = 10000

type EntryStore interface {
	CreateEntry(ctx context.Context, profileID int64, text, emoji string) (postgres.EntryRecord, error)
	ListEntries(ctx context.Context, profileID int64, limit int) ([]postgres.EntryRecord, error)
	FindEntry(ctx context.Context, entryID int64) (postgres.EntryRecord, error)
}

type ProfileStore interface {
	FindByID(ctx context.Context, profileID int64) (postgres.ProfileRecord, error)
}

type AccessorStore interface {
	FindGrant(ctx context.Context, profileID, userID int64) (postgres.AccessorRecord, error)
}

type EntitlementGate interface {
	Check(ctx context.Context, resource premium.Resource) (premium.Decision, error)
}

// Service owns journal entries. Creating an entry is a premium feature
// gated on the profile owner's subscription; reading existing entries is
// open to anyone with profile access.
type Service struct {
	entries   EntryStore
	profiles  ProfileStore
	accessors AccessorStore
	gate      EntitlementGate
}

func NewService(entries EntryStore, profiles ProfileStore, accessors AccessorStore, gate EntitlementGate) *Service {
	return &Service{
		entries:   entries,
		profiles:  profiles,
		accessors: accessors,
		gate:      gate,
	}
}

type subscriptionOwner int64

func (o subscriptionOwner) SubscriptionOwnerID() int64 { return int64(o) }

func (s *Service) CreateEntry(ctx context.Context, requesterID, profileID int64, text, emoji string) (postgres.EntryRecord, error) {
	if strings.TrimSpace(text) == "" {
		return postgres.EntryRecord{}, fmt.Errorf("entry text is required: %w", ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxEntryTextLen {
		return postgres.EntryRecord{}, fmt.Errorf("entry text too long: %w", ErrValidation)
	}

	profile, err := s.resolveProfile(ctx, profileID)
	if err != nil {
		return postgres.EntryRecord{}, err
	}
	if err := s.requireWrite(ctx, profile, requesterID); err != nil {
		return postgres.EntryRecord{}, err
	}

	decision, err := s.gate.Check(ctx, subscriptionOwner(profile.UserID))
	if err != nil {
		return postgres.EntryRecord{}, err
	}
	if decision != premium.Allow {
		return postgres.EntryRecord{}, ErrNotFound
	}

	return s.entries.CreateEntry(ctx, profile.ID, text, emoji)
}

func (s *Service) ListEntries(ctx context.Context, requesterID, profileID int64, limit int) ([]postgres.EntryRecord, error) {
	profile, err := s.resolveProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRead(ctx, profile, requesterID); err != nil {
		return nil, err
	}
	return s.entries.ListEntries(ctx, profile.ID, limit)
}

func (s *Service) GetEntry(ctx context.Context, requesterID, entryID int64) (postgres.EntryRecord, error) {
	entry, err := s.entries.FindEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, postgres.ErrEntryNotFound) {
			return postgres.EntryRecord{}, ErrNotFound
		}
		return postgres.EntryRecord{}, err
	}
	profile, err := s.resolveProfile(ctx, entry.ProfileID)
	if err != nil {
		return postgres.EntryRecord{}, err
	}
	if err := s.requireRead(ctx, profile, requesterID); err != nil {
		return postgres.EntryRecord{}, err
	}
	return entry, nil
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
