package services

import (
	"context"
	"time"

	"seat-waitroom/utils"
)

// Locker is the short-TTL advisory lock guarding one promotion decision
// per scope. TryAcquire never blocks: losing the race just means another
// invocation is already deciding.
type Locker interface {
	TryAcquire(ctx context.Context, scope string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, scope, token string) error
}

type storeLocker struct {
	store Store
}

// NewStoreLocker builds a Locker on the store's set-if-absent primitive.
// The TTL bounds unavailability when a holder crashes mid-decision, and
// the token keeps a slow holder from releasing a successor's lock.
func NewStoreLocker(store Store) Locker {
	return &storeLocker{store: store}
}

func (l *storeLocker) TryAcquire(ctx context.Context, scope string, ttl time.Duration) (string, bool, error) {
	token, err := utils.GenerateToken(16)
	if err != nil {
		return "", false, err
	}

	ok, err := l.store.SetNX(ctx, lockKey(scope), token, ttl)
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (l *storeLocker) Release(ctx context.Context, scope, token string) error {
	// Compare-and-delete: if the TTL already fired and someone else
	// holds the lock, this is a no-op.
	_, err := l.store.DelIfEquals(ctx, lockKey(scope), token)
	return err
}
