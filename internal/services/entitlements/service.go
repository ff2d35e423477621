package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/knowmetools/km-api-sub001/internal/repo/postgres"
)

// ActiveReceiptStore looks up the caller's receipt with the latest
// still-valid expiration.
type ActiveReceiptStore interface {
	FindActiveForUser(ctx context.Context, userID int64, now time.Time) (postgres.ReceiptRecord, error)
}

// Service computes premium entitlement on read. Nothing is cached or
// persisted: the answer always derives from stored expirations.
type Service struct {
	receipts ActiveReceiptStore
	now      func() time.Time
}

func NewService(receipts ActiveReceiptStore) *Service {
	return &Service{
		receipts: receipts,
		now:      time.Now,
	}
}

// IsPremium reports whether the user holds an unexpired receipt. Store
// failures fail closed: the caller is treated as not premium and gets the
// error for logging.
func (s *Service) IsPremium(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	_, err := s.receipts.FindActiveForUser(ctx, userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, postgres.ErrReceiptNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
