package premium

import (
	"context"
	"errors"
	"testing"
)

type entitlementStub struct {
	premiumUsers map[int64]bool
	err          error
	lastUserID   int64
}

func (s *entitlementStub) IsPremium(_ context.Context, userID int64) (bool, error) {
	s.lastUserID = userID
	if s.err != nil {
		return false, s.err
	}
	return s.premiumUsers[userID], nil
}

type ownedResource struct {
	ownerID int64
}

func (r ownedResource) SubscriptionOwnerID() int64 { return r.ownerID }

func TestGateAllowsPremiumOwner(t *testing.T) {
	checker := &entitlementStub{premiumUsers: map[int64]bool{101: true}}
	gate := NewGate(checker)

	decision, err := gate.Check(context.Background(), ownedResource{ownerID: 101})
	if err != nil {
		t.Fatalf("gate check: %v", err)
	}
	if decision != Allow {
		t.Fatalf("premium owner must be allowed, got %v", decision)
	}
}

func TestGateHidesResourceFromNonPremiumOwner(t *testing.T) {
	gate := NewGate(&entitlementStub{premiumUsers: map[int64]bool{}})

	decision, err := gate.Check(context.Background(), ownedResource{ownerID: 101})
	if err != nil {
		t.Fatalf("gate check: %v", err)
	}
	if decision != NotFound {
		t.Fatalf("non-premium owner must read as not found, got %v", decision)
	}
}

func TestGateChecksOwnerNotRequester(t *testing.T) {
	checker := &entitlementStub{premiumUsers: map[int64]bool{101: true}}
	gate := NewGate(checker)

	// requester 202 writes to a profile owned by premium user 101
	decision, err := gate.Check(context.Background(), ownedResource{ownerID: 101})
	if err != nil {
		t.Fatalf("gate check: %v", err)
	}
	if decision != Allow {
		t.Fatalf("accessor must ride on the owner's subscription, got %v", decision)
	}
	if checker.lastUserID != 101 {
		t.Fatalf("entitlement must be checked for the owner, got user %d", checker.lastUserID)
	}
}

func TestGateFailsClosedOnEntitlementError(t *testing.T) {
	checkErr := errors.New("connection reset")
	gate := NewGate(&entitlementStub{err: checkErr})

	decision, err := gate.Check(context.Background(), ownedResource{ownerID: 101})
	if !errors.Is(err, checkErr) {
		t.Fatalf("expected entitlement error to surface, got %v", err)
	}
	if decision != NotFound {
		t.Fatalf("entitlement failure must fail closed, got %v", decision)
	}
}
