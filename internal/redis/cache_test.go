package redis

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStore_GetListingMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCacheStore(db)

	mock.ExpectGet(listingCachePrefix + "l1").RedisNil()

	listing, err := cache.GetListing(context.Background(), "l1")
	require.NoError(t, err)
	assert.Nil(t, listing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_GetListingHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCacheStore(db)

	mock.ExpectGet(listingCachePrefix + "l1").
		SetVal(`{"id":"l1","host_id":"h1","name":"Cabin","price_per_night":"50.00"}`)

	listing, err := cache.GetListing(context.Background(), "l1")
	require.NoError(t, err)
	require.NotNil(t, listing)
	assert.Equal(t, "Cabin", listing.Name)
	assert.Equal(t, "50", listing.PricePerNight.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
