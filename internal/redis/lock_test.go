package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStore_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locks := NewLockStore(db)
	ctx := context.Background()

	mock.ExpectSetNX("lock:payment:p1", "token-a", 30*time.Second).SetVal(true)
	mock.ExpectSetNX("lock:payment:p1", "token-b", 30*time.Second).SetVal(false)
	mock.ExpectEval(releaseScript, []string{"lock:payment:p1"}, "token-a").SetVal(int64(1))

	ok, err := locks.AcquirePaymentLock(ctx, "p1", "token-a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locks.AcquirePaymentLock(ctx, "p1", "token-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire should see the lock held")

	require.NoError(t, locks.ReleasePaymentLock(ctx, "p1", "token-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockStore_ReleaseWithStaleTokenIsNoop(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locks := NewLockStore(db)

	// The script found another holder's token and deleted nothing.
	mock.ExpectEval(releaseScript, []string{"lock:payment:p1"}, "expired-token").SetVal(int64(0))

	require.NoError(t, locks.ReleasePaymentLock(context.Background(), "p1", "expired-token"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
