package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/durolink/durolink/internal/models"
)

func openCacheTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CacheEntry{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestDatabaseStoreRoundTrip(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "directory:octocat", []byte("12345"), time.Hour))

	value, found, err := store.Get(ctx, "directory:octocat")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("12345"), value)

	// Upsert overwrites in place.
	require.NoError(t, store.Set(ctx, "directory:octocat", []byte("67890"), time.Hour))
	value, _, _ = store.Get(ctx, "directory:octocat")
	require.Equal(t, []byte("67890"), value)

	require.NoError(t, store.Delete(ctx, "directory:octocat"))
	_, found, err = store.Get(ctx, "directory:octocat")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreExpiredEntriesAreMisses(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := store.IncrementWithTTL(ctx, "burst", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
		require.Positive(t, ttl)
	}
}
