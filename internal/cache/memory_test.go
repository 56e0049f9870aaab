package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "token", []byte("ghs_abc"), time.Minute))

	value, found, err := store.Get(ctx, "token")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("ghs_abc"), value)

	require.NoError(t, store.Set(ctx, "token", []byte("ghs_def"), time.Minute))
	value, _, _ = store.Get(ctx, "token")
	require.Equal(t, []byte("ghs_def"), value)

	require.NoError(t, store.Delete(ctx, "token"))
	_, found, err = store.Get(ctx, "token")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "jwt", []byte("signed"), 9*time.Minute))

	_, found, err := store.Get(ctx, "jwt")
	require.NoError(t, err)
	require.True(t, found)

	now = now.Add(9*time.Minute + time.Second)

	_, found, err = store.Get(ctx, "jwt")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pinned", []byte("v"), 0))

	now = now.Add(365 * 24 * time.Hour)

	_, found, err := store.Get(ctx, "pinned")
	require.NoError(t, err)
	require.True(t, found)
}

func TestMemoryStoreIncrementWithTTL(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	count, _, err := store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, _, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	now = now.Add(2 * time.Minute)

	count, _, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "expired window restarts the counter")
}
