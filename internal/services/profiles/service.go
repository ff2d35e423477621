package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	"github.com/knowmetools/km-api-sub001/internal/services/premium"
)

var (
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers both genuinely missing resources and resources the
	// requester may not know exist.
	ErrNotFound      = errors.New("profile resource not found")
	ErrForbidden     = errors.New("write access not granted")
	ErrAlreadyExists = errors.New("resource already exists")
)

type ProfileStore interface {
	Create(ctx context.Context, userID int64, name string) (postgres.ProfileRecord, error)
	FindByUserID(ctx context.Context, userID int64) (postgres.ProfileRecord, error)
	FindByID(ctx context.Context, profileID int64) (postgres.ProfileRecord, error)
	CreateTopic(ctx context.Context, profileID int64, name, topicType string) (postgres.TopicRecord, error)
	ListTopics(ctx context.Context, profileID int64) ([]postgres.TopicRecord, error)
	FindTopic(ctx context.Context, topicID int64) (postgres.TopicRecord, error)
	CreateItem(ctx context.Context, topicID int64, name, description string) (postgres.ItemRecord, error)
	ListItems(ctx context.Context, topicID int64) ([]postgres.ItemRecord, error)
}

type AccessorStore interface {
	Create(ctx context.Context, profileID, userID int64, canWrite bool) (postgres.AccessorRecord, error)
	Accept(ctx context.Context, accessorID, userID int64) (postgres.AccessorRecord, error)
	ListForProfile(ctx context.Context, profileID int64) ([]postgres.AccessorRecord, error)
	FindGrant(ctx context.Context, profileID, userID int64) (postgres.AccessorRecord, error)
}

// EntitlementGate decides whether a premium write may proceed.
type EntitlementGate interface {
	Check(ctx context.Context, resource premium.Resource) (premium.Decision, error)
}

// Service owns profiles, their topic/item tree and accessor grants. Topic
// and item writes are premium features billed to the profile owner: an
// accessor with write access still needs the owner to hold premium.
type Service struct {
	profiles  ProfileStore
	accessors AccessorStore
	gate      EntitlementGate
}

func NewService(profiles ProfileStore, accessors AccessorStore, gate EntitlementGate) *Service {
	return &Service{
		profiles:  profiles,
		accessors: accessors,
		gate:      gate,
	}
}

const (
	TopicTypeText   = "text"
	TopicTypeVisual = "visual"
)

type subscriptionOwner int64

func (o subscriptionOwner) SubscriptionOwnerID() int64 { return int64(o) }

func (s *Service) CreateProfile(ctx context.Context, userID int64, name string) (postgres.ProfileRecord, error) {
	if userID <= 0 || strings.TrimSpace(name) == "" {
		return postgres.ProfileRecord{}, fmt.Errorf("profile name is required: %w", ErrValidation)
	}
	record, err := s.profiles.Create(ctx, userID, name)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileExists) {
			return postgres.ProfileRecord{}, ErrAlreadyExists
		}
		return postgres.ProfileRecord{}, err
	}
	return record, nil
}

func (s *Service) GetOwnProfile(ctx context.Context, userID int64) (postgres.ProfileRecord, error) {
	record, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return postgres.ProfileRecord{}, ErrNotFound
		}
		return postgres.ProfileRecord{}, err
	}
	return record, nil
}

// GetProfile resolves a profile for a requester: the owner always sees it,
// accessors only after accepting their grant. Everyone else gets not-found.
func (s *Service) GetProfile(ctx context.Context, requesterID, profileID int64) (postgres.ProfileRecord, error) {
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return postgres.ProfileRecord{}, ErrNotFound
		}
		return postgres.ProfileRecord{}, err
	}
	if err := s.requireReadAccess(ctx, profile, requesterID); err != nil {
		return postgres.ProfileRecord{}, err
	}
	return profile, nil
}

func (s *Service) CreateTopic(ctx context.Context, requesterID, profileID int64, name, topicType string) (postgres.TopicRecord, error) {
	if strings.TrimSpace(name) == "" {
		return postgres.TopicRecord{}, fmt.Errorf("topic name is required: %w", ErrValidation)
	}
	if topicType != TopicTypeText && topicType != TopicTypeVisual {
		return postgres.TopicRecord{}, fmt.Errorf("unknown topic type %q: %w", topicType, ErrValidation)
	}

	profile, err := s.writableProfile(ctx, requesterID, profileID)
	if err != nil {
		return postgres.TopicRecord{}, err
	}
	return s.profiles.CreateTopic(ctx, profile.ID, name, topicType)
}

func (s *Service) ListTopics(ctx context.Context, requesterID, profileID int64) ([]postgres.TopicRecord, error) {
	if _, err := s.GetProfile(ctx, requesterID, profileID); err != nil {
		return nil, err
	}
	return s.profiles.ListTopics(ctx, profileID)
}

func (s *Service) CreateItem(ctx context.Context, requesterID, topicID int64, name, description string) (postgres.ItemRecord, error) {
	if strings.TrimSpace(name) == "" {
		return postgres.ItemRecord{}, fmt.Errorf("item name is required: %w", ErrValidation)
	}

	topic, err := s.profiles.FindTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, postgres.ErrTopicNotFound) {
			return postgres.ItemRecord{}, ErrNotFound
		}
		return postgres.ItemRecord{}, err
	}
	if _, err := s.writableProfile(ctx, requesterID, topic.ProfileID); err != nil {
		return postgres.ItemRecord{}, err
	}
	return s.profiles.CreateItem(ctx, topic.ID, name, description)
}

func (s *Service) ListItems(ctx context.Context, requesterID, topicID int64) ([]postgres.ItemRecord, error) {
	topic, err := s.profiles.FindTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, postgres.ErrTopicNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.GetProfile(ctx, requesterID, topic.ProfileID); err != nil {
		return nil, err
	}
	return s.profiles.ListItems(ctx, topic.ID)
}

// GrantAccessor invites another user onto the profile. Only the owner can
// grant access.
func (s *Service) GrantAccessor(ctx context.Context, ownerID, profileID, userID int64, canWrite bool) (postgres.AccessorRecord, error) {
	if userID <= 0 {
		return postgres.AccessorRecord{}, fmt.Errorf("accessor user is required: %w", ErrValidation)
	}
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return postgres.AccessorRecord{}, ErrNotFound
		}
		return postgres.AccessorRecord{}, err
	}
	if profile.UserID != ownerID {
		return postgres.AccessorRecord{}, ErrNotFound
	}
	if userID == ownerID {
		return postgres.AccessorRecord{}, fmt.Errorf("owner already has access: %w", ErrValidation)
	}

	record, err := s.accessors.Create(ctx, profile.ID, userID, canWrite)
	if err != nil {
		if errors.Is(err, postgres.ErrAccessorExists) {
			return postgres.AccessorRecord{}, ErrAlreadyExists
		}
		return postgres.AccessorRecord{}, err
	}
	return record, nil
}

func (s *Service) AcceptAccessor(ctx context.Context, userID, accessorID int64) (postgres.AccessorRecord, error) {
	record, err := s.accessors.Accept(ctx, accessorID, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccessorNotFound) {
			return postgres.AccessorRecord{}, ErrNotFound
		}
		return postgres.AccessorRecord{}, err
	}
	return record, nil
}

func (s *Service) ListAccessors(ctx context.Context, ownerID, profileID int64) ([]postgres.AccessorRecord, error) {
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if profile.UserID != ownerID {
		return nil, ErrNotFound
	}
	return s.accessors.ListForProfile(ctx, profile.ID)
}

func (s *Service) requireReadAccess(ctx context.Context, profile postgres.ProfileRecord, requesterID int64) error {
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

// writableProfile resolves the profile, checks the requester may write to
// it and runs the premium gate against the owner's entitlement.
func (s *Service) writableProfile(ctx context.Context, requesterID, profileID int64) (postgres.ProfileRecord, error) {
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return postgres.ProfileRecord{}, ErrNotFound
		}
		return postgres.ProfileRecord{}, err
	}

	if profile.UserID != requesterID {
		grant, err := s.accessors.FindGrant(ctx, profile.ID, requesterID)
		if err != nil {
			if errors.Is(err, postgres.ErrAccessorNotFound) {
				return postgres.ProfileRecord{}, ErrNotFound
			}
			return postgres.ProfileRecord{}, err
		}
		if !grant.CanWrite {
			return postgres.ProfileRecord{}, ErrForbidden
		}
	}

	decision, err := s.gate.Check(ctx, subscriptionOwner(profile.UserID))
	if err != nil {
		return postgres.ProfileRecord{}, err
	}
	if decision != premium.Allow {
		return postgres.ProfileRecord{}, ErrNotFound
	}
	return profile, nil
}
