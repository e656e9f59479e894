package searchstore

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weekendfare/weekendfare/internal/search"
)

func TestPutAndGet(t *testing.T) {
	store := NewStore(StoreConfig{Logger: zerolog.Nop()})

	result := &search.Result{Origin: "SFO", Destination: "JFK"}
	entry := store.Put(result)

	assert.True(t, strings.HasPrefix(entry.ID, "sch_"))
	assert.True(t, entry.ExpiresAt.After(entry.CreatedAt))

	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.Same(t, result, got.Result)
}

func TestGetUnknown(t *testing.T) {
	store := NewStore(StoreConfig{Logger: zerolog.Nop()})

	_, err := store.Get("sch_nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetExpired(t *testing.T) {
	store := NewStore(StoreConfig{TTL: time.Millisecond, Logger: zerolog.Nop()})

	entry := store.Put(&search.Result{Origin: "SFO", Destination: "JFK"})
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupEvictsExpired(t *testing.T) {
	store := NewStore(StoreConfig{
		TTL:             time.Millisecond,
		CleanupInterval: time.Millisecond,
		Logger:          zerolog.Nop(),
	})

	store.Put(&search.Result{Origin: "SFO", Destination: "JFK"})
	store.Put(&search.Result{Origin: "SFO", Destination: "BOS"})
	time.Sleep(5 * time.Millisecond)

	// The next write triggers cleanup of the expired entries.
	kept := store.Put(&search.Result{Origin: "SFO", Destination: "SEA"})

	assert.Equal(t, 1, store.Len())
	_, err := store.Get(kept.ID)
	assert.NoError(t, err)
}

func TestDistinctIDs(t *testing.T) {
	store := NewStore(StoreConfig{Logger: zerolog.Nop()})

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		entry := store.Put(&search.Result{})
		_, dup := seen[entry.ID]
		require.False(t, dup)
		seen[entry.ID] = struct{}{}
	}
}
