package service

import (
	"context"
	"sync"
	"time"

	"travel/internal/redis"
)

var _ redis.LockStoreInterface = (*LocalLocker)(nil)

// LocalLocker is an in-process stand-in for the Redis lock store, used when
// the service runs without Redis.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
}

type localLock struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock)}
}

func (l *LocalLocker) AcquirePaymentLock(_ context.Context, paymentID, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if held, ok := l.locks[paymentID]; ok && now.Before(held.expires) {
		return false, nil
	}
	l.locks[paymentID] = localLock{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (l *LocalLocker) ReleasePaymentLock(_ context.Context, paymentID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.locks[paymentID]; ok && held.token == token {
		delete(l.locks, paymentID)
	}
	return nil
}
