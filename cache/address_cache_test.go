package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"member/models"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return s, rdb
}

func TestAddressCache_SetGetKeepsIDOrder(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, time.Minute)
	ctx := context.Background()

	line2 := "Floor 3"
	input := []models.Address{
		{ID: 7, UserID: 1, AddressLine1: "B street", City: "Taipei", IsDefault: true},
		{ID: 3, UserID: 1, AddressLine1: "A street", AddressLine2: &line2, City: "Tainan"},
	}
	require.NoError(t, c.Set(ctx, 1, 0, input))

	got, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, uint(3), got[0].ID)
	assert.Equal(t, "Floor 3", *got[0].AddressLine2)
	assert.Equal(t, uint(7), got[1].ID)
	assert.True(t, got[1].IsDefault)
}

func TestAddressCache_MissAndInvalidate(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, 9, 0, []models.Address{{ID: 1, UserID: 9}}))
	require.NoError(t, c.Invalidate(ctx, 9))

	_, ok, err = c.Get(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddressCache_SetReplacesAndEmptyClears(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 2, 0, []models.Address{{ID: 1, UserID: 2}, {ID: 2, UserID: 2}}))
	require.NoError(t, c.Set(ctx, 2, 0, []models.Address{{ID: 2, UserID: 2}}))

	got, ok, err := c.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, uint(2), got[0].ID)

	require.NoError(t, c.Set(ctx, 2, 0, nil))
	_, ok, err = c.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddressCache_Expires(t *testing.T) {
	s, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 4, 0, []models.Address{{ID: 1, UserID: 4}}))
	assert.Equal(t, time.Minute, s.TTL(addressKey(4)))

	s.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddressCache_RedisDown(t *testing.T) {
	s, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, 0)
	assert.Equal(t, 5*time.Minute, c.ttl)

	s.Close()
	_, _, err := c.Get(context.Background(), 1)
	assert.Error(t, err)
}

func TestAddressCache_InvalidateBumpsGeneration(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, time.Minute)
	ctx := context.Background()

	generation, err := c.Generation(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), generation)

	require.NoError(t, c.Invalidate(ctx, 5))
	require.NoError(t, c.Invalidate(ctx, 5))
	generation, err = c.Generation(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), generation)

	require.NoError(t, c.Set(ctx, 5, generation, []models.Address{{ID: 1, UserID: 5}}))
	_, ok, err := c.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddressCache_SetSkipsStaleGeneration(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewAddressCache(rdb, time.Minute)
	ctx := context.Background()

	generation, err := c.Generation(ctx, 6)
	require.NoError(t, err)

	// 讀取資料庫期間有寫入完成
	require.NoError(t, c.Invalidate(ctx, 6))

	require.NoError(t, c.Set(ctx, 6, generation, []models.Address{{ID: 1, UserID: 6, IsDefault: true}}))
	_, ok, err := c.Get(ctx, 6)
	require.NoError(t, err)
	assert.False(t, ok)
}
