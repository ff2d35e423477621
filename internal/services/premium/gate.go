package premium

import "context"

// Decision is the gate's verdict for one request.
type Decision int

const (
	// Allow lets the request through.
	Allow Decision = iota
	// NotFound hides the resource entirely. Non-premium owners get this
	// instead of a forbidden answer so the gate never reveals that the
	// resource exists.
	NotFound
	// Deny rejects the request without hiding the resource.
	Deny
)

// Resource is anything whose premium access hangs off a subscription
// owner. For shared profiles that owner is the profile owner, not whoever
// is asking.
type Resource interface {
	SubscriptionOwnerID() int64
}

// EntitlementChecker answers whether a user currently holds premium.
type EntitlementChecker interface {
	IsPremium(ctx context.Context, userID int64) (bool, error)
}

// Gate guards premium-only operations. It always checks the entitlement of
// the resource owner, so an accessor writing to a shared profile rides on
// the owner's subscription.
type Gate struct {
	entitlements EntitlementChecker
}

func NewGate(entitlements EntitlementChecker) *Gate {
	return &Gate{entitlements: entitlements}
}

// Check resolves the gate decision for a resource. Entitlement lookup
// failures fail closed as NotFound, with the error returned for logging.
func (g *Gate) Check(ctx context.Context, resource Resource) (Decision, error) {
	ownerID := resource.SubscriptionOwnerID()
	premium, err := g.entitlements.IsPremium(ctx, ownerID)
	if err != nil {
		return NotFound, err
	}
	if !premium {
		return NotFound, nil
	}
	return Allow, nil
}
