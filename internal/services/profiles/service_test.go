package profiles

import (
	"context"
	"errors"
	"testing"

	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	premiumsvc "github.com/knowmetools/km-api-sub001/internal/services/premium"
)

type profileStoreStub struct {
	profiles map[int64]pgrepo.ProfileRecord
	topics   map[int64]pgrepo.TopicRecord
	items    map[int64]pgrepo.ItemRecord
	nextID   int64
}

func newProfileStoreStub() *profileStoreStub {
	return &profileStoreStub{
		profiles: make(map[int64]pgrepo.ProfileRecord),
		topics:   make(map[int64]pgrepo.TopicRecord),
		items:    make(map[int64]pgrepo.ItemRecord),
	}
}

func (s *profileStoreStub) Create(_ context.Context, userID int64, name string) (pgrepo.ProfileRecord, error) {
	for _, profile := range s.profiles {
		if profile.UserID == userID {
			return pgrepo.ProfileRecord{}, pgrepo.ErrProfileExists
		}
	}
	s.nextID++
	record := pgrepo.ProfileRecord{ID: s.nextID, UserID: userID, Name: name}
	s.profiles[record.ID] = record
	return record, nil
}

func (s *profileStoreStub) FindByUserID(_ context.Context, userID int64) (pgrepo.ProfileRecord, error) {
	for _, profile := range s.profiles {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return pgrepo.ProfileRecord{}, pgrepo.ErrProfileNotFound
}

func (s *profileStoreStub) FindByID(_ context.Context, profileID int64) (pgrepo.ProfileRecord, error) {
	profile, ok := s.profiles[profileID]
	if !ok {
		return pgrepo.ProfileRecord{}, pgrepo.ErrProfileNotFound
	}
	return profile, nil
}

func (s *profileStoreStub) CreateTopic(_ context.Context, profileID int64, name, topicType string) (pgrepo.TopicRecord, error) {
	s.nextID++
	record := pgrepo.TopicRecord{ID: s.nextID, ProfileID: profileID, Name: name, TopicType: topicType}
	s.topics[record.ID] = record
	return record, nil
}

func (s *profileStoreStub) ListTopics(_ context.Context, profileID int64) ([]pgrepo.TopicRecord, error) {
	var topics []pgrepo.TopicRecord
	for _, topic := range s.topics {
		if topic.ProfileID == profileID {
			topics = append(topics, topic)
		}
	}
	return topics, nil
}

func (s *profileStoreStub) FindTopic(_ context.Context, topicID int64) (pgrepo.TopicRecord, error) {
	topic, ok := s.topics[topicID]
	if !ok {
		return pgrepo.TopicRecord{}, pgrepo.ErrTopicNotFound
	}
	return topic, nil
}

func (s *profileStoreStub) CreateItem(_ context.Context, topicID int64, name, description string) (pgrepo.ItemRecord, error) {
	s.nextID++
	record := pgrepo.ItemRecord{ID: s.nextID, TopicID: topicID, Name: name, Description: description}
	s.items[record.ID] = record
	return record, nil
}

func (s *profileStoreStub) ListItems(_ context.Context, topicID int64) ([]pgrepo.ItemRecord, error) {
	var items []pgrepo.ItemRecord
	for _, item := range s.items {
		if item.TopicID == topicID {
			items = append(items, item)
		}
	}
	return items, nil
}

type accessorStoreStub struct {
	accessors map[int64]pgrepo.AccessorRecord
	nextID    int64
}

func newAccessorStoreStub() *accessorStoreStub {
	return &accessorStoreStub{accessors: make(map[int64]pgrepo.AccessorRecord)}
}

func (s *accessorStoreStub) Create(_ context.Context, profileID, userID int64, canWrite bool) (pgrepo.AccessorRecord, error) {
	for _, accessor := range s.accessors {
		if accessor.ProfileID == profileID && accessor.UserID == userID {
			return pgrepo.AccessorRecord{}, pgrepo.ErrAccessorExists
		}
	}
	s.nextID++
	record := pgrepo.AccessorRecord{ID: s.nextID, ProfileID: profileID, UserID: userID, CanWrite: canWrite}
	s.accessors[record.ID] = record
	return record, nil
}

func (s *accessorStoreStub) Accept(_ context.Context, accessorID, userID int64) (pgrepo.AccessorRecord, error) {
	record, ok := s.accessors[accessorID]
	if !ok || record.UserID != userID {
		return pgrepo.AccessorRecord{}, pgrepo.ErrAccessorNotFound
	}
	record.IsAccepted = true
	s.accessors[accessorID] = record
	return record, nil
}

func (s *accessorStoreStub) ListForProfile(_ context.Context, profileID int64) ([]pgrepo.AccessorRecord, error) {
	var accessors []pgrepo.AccessorRecord
	for _, accessor := range s.accessors {
		if accessor.ProfileID == profileID {
			accessors = append(accessors, accessor)
		}
	}
	return accessors, nil
}

func (s *accessorStoreStub) FindGrant(_ context.Context, profileID, userID int64) (pgrepo.AccessorRecord, error) {
	for _, accessor := range s.accessors {
		if accessor.ProfileID == profileID && accessor.UserID == userID && accessor.IsAccepted {
			return accessor, nil
		}
	}
	return pgrepo.AccessorRecord{}, pgrepo.ErrAccessorNotFound
}

type gateStub struct {
	decision  premiumsvc.Decision
	err       error
	lastOwner int64
}

func (s *gateStub) Check(_ context.Context, resource premiumsvc.Resource) (premiumsvc.Decision, error) {
	s.lastOwner = resource.SubscriptionOwnerID()
	return s.decision, s.err
}

func newTestService(gate *gateStub) (*Service, *profileStoreStub, *accessorStoreStub) {
	profiles := newProfileStoreStub()
	accessors := newAccessorStoreStub()
	return NewService(profiles, accessors, gate), profiles, accessors
}

func TestCreateTopicForPremiumOwner(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.Allow}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	topic, err := svc.CreateTopic(ctx, 101, profile.ID, "Recipes", TopicTypeText)
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	if topic.ProfileID != profile.ID {
		t.Fatalf("topic attached to wrong profile: %d", topic.ProfileID)
	}
	if gate.lastOwner != 101 {
		t.Fatalf("gate must check the profile owner, got %d", gate.lastOwner)
	}
}

func TestCreateTopicHiddenFromNonPremiumOwner(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.NotFound}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	_, err = svc.CreateTopic(ctx, 101, profile.ID, "Recipes", TopicTypeText)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-premium owner must get not-found, got %v", err)
	}
}

func TestAccessorWriteRidesOnOwnerEntitlement(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.Allow}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	grant, err := svc.GrantAccessor(ctx, 101, profile.ID, 202, true)
	if err != nil {
		t.Fatalf("grant accessor: %v", err)
	}
	if _, err := svc.AcceptAccessor(ctx, 202, grant.ID); err != nil {
		t.Fatalf("accept accessor: %v", err)
	}

	if _, err := svc.CreateTopic(ctx, 202, profile.ID, "Stories", TopicTypeText); err != nil {
		t.Fatalf("accessor with write grant must be able to create topics: %v", err)
	}
	if gate.lastOwner != 101 {
		t.Fatalf("gate must check the owner, not the accessor: got %d", gate.lastOwner)
	}
}

func TestReadOnlyAccessorCannotWrite(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.Allow}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	grant, err := svc.GrantAccessor(ctx, 101, profile.ID, 202, false)
	if err != nil {
		t.Fatalf("grant accessor: %v", err)
	}
	if _, err := svc.AcceptAccessor(ctx, 202, grant.ID); err != nil {
		t.Fatalf("accept accessor: %v", err)
	}

	if _, err := svc.GetProfile(ctx, 202, profile.ID); err != nil {
		t.Fatalf("read-only accessor must still read the profile: %v", err)
	}
	_, err = svc.CreateTopic(ctx, 202, profile.ID, "Stories", TopicTypeText)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("read-only accessor must not write, got %v", err)
	}
}

func TestStrangerGetsNotFound(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.Allow}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if _, err := svc.GetProfile(ctx, 999, profile.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger must get not-found, got %v", err)
	}
	if _, err := svc.CreateTopic(ctx, 999, profile.ID, "Stories", TopicTypeText); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger write must get not-found, got %v", err)
	}
}

func TestUnacceptedGrantDoesNotGrantAccess(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.Allow}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := svc.GrantAccessor(ctx, 101, profile.ID, 202, true); err != nil {
		t.Fatalf("grant accessor: %v", err)
	}

	if _, err := svc.GetProfile(ctx, 202, profile.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending grant must not give access, got %v", err)
	}
}

func TestCreateItemWalksTopicToProfileOwner(t *testing.T) {
	gate := &gateStub{decision: premiumsvc.Allow}
	svc, _, _ := newTestService(gate)
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	topic, err := svc.CreateTopic(ctx, 101, profile.ID, "Recipes", TopicTypeText)
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}

	item, err := svc.CreateItem(ctx, 101, topic.ID, "Apple pie", "with cinnamon")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.TopicID != topic.ID {
		t.Fatalf("item attached to wrong topic: %d", item.TopicID)
	}
	if gate.lastOwner != 101 {
		t.Fatalf("gate must resolve the owner through the topic, got %d", gate.lastOwner)
	}
}

func TestCreateTopicRejectsUnknownType(t *testing.T) {
	svc, _, _ := newTestService(&gateStub{decision: premiumsvc.Allow})

	_, err := svc.CreateTopic(context.Background(), 101, 1, "Recipes", "audio")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown topic type, got %v", err)
	}
}

func TestGrantAccessorOnlyByOwner(t *testing.T) {
	svc, _, _ := newTestService(&gateStub{decision: premiumsvc.Allow})
	ctx := context.Background()

	profile, err := svc.CreateProfile(ctx, 101, "Grandma")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if _, err := svc.GrantAccessor(ctx, 999, profile.ID, 202, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-owner grant must get not-found, got %v", err)
	}
	if _, err := svc.GrantAccessor(ctx, 101, profile.ID, 101, true); !errors.Is(err, ErrValidation) {
		t.Fatalf("self-grant must be a validation error, got %v", err)
	}
}
