package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only while it still holds the caller's token.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client redis.Cmdable
}

// NewLockStore creates a new LockStore.
func NewLockStore(client redis.Cmdable) *LockStore {
	return &LockStore{client: client}
}

func paymentLockKey(paymentID string) string {
	return fmt.Sprintf("lock:payment:%s", paymentID)
}

// AcquirePaymentLock attempts to acquire the initialize lock for a payment,
// storing token as the holder. Returns true if the lock was acquired, false
// if already held.
func (s *LockStore) AcquirePaymentLock(ctx context.Context, paymentID, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, paymentLockKey(paymentID), token, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleasePaymentLock releases the initialize lock for a payment if token
// still holds it. A lock that expired and was taken by someone else is left
// alone.
func (s *LockStore) ReleasePaymentLock(ctx context.Context, paymentID, token string) error {
	return s.client.Eval(ctx, releaseScript, []string{paymentLockKey(paymentID)}, token).Err()
}
