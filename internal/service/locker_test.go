package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel/internal/service"
)

func TestLocalLocker_ReleaseRequiresHolderToken(t *testing.T) {
	t.Parallel()
	locks := service.NewLocalLocker()
	ctx := context.Background()

	ok, err := locks.AcquirePaymentLock(ctx, "p1", "first", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	// first's lock expired; second takes over.
	ok, err = locks.AcquirePaymentLock(ctx, "p1", "second", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A late release by first must not free second's lock.
	require.NoError(t, locks.ReleasePaymentLock(ctx, "p1", "first"))
	ok, err = locks.AcquirePaymentLock(ctx, "p1", "third", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locks.ReleasePaymentLock(ctx, "p1", "second"))
	ok, err = locks.AcquirePaymentLock(ctx, "p1", "third", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
