// Package searchstore keeps completed search results in memory so the API can
// serve them by id. Entries expire after a TTL; nothing is persisted.
package searchstore

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/weekendfare/weekendfare/internal/search"
)

var ErrNotFound = errors.New("search not found")

// Defaults for the store configuration.
const (
	// DefaultTTL is how long completed searches stay retrievable.
	DefaultTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often expired entries are removed.
	DefaultCleanupInterval = 5 * time.Minute
)

// Entry is a stored search and its metadata.
type Entry struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Result    *search.Result
}

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	// TTL is how long entries stay retrievable (default: 30 minutes).
	TTL time.Duration

	// CleanupInterval is how often expired entries are removed
	// (default: 5 minutes).
	CleanupInterval time.Duration

	// Logger for store operations.
	Logger zerolog.Logger
}

// Store is an in-memory, TTL-evicted store of completed searches.
type Store struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	logger          zerolog.Logger

	mu          sync.RWMutex
	entries     map[string]Entry
	lastCleanup time.Time
}

// NewStore creates a new store.
func NewStore(cfg StoreConfig) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Store{
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		logger:          cfg.Logger,
		entries:         make(map[string]Entry),
	}
}

// Put stores a completed search and returns its id.
func (s *Store) Put(result *search.Result) Entry {
	now := time.Now()
	entry := Entry{
		ID:        "sch_" + uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Result:    result,
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.cleanupLocked(now)
	s.mu.Unlock()

	return entry
}

// Get returns a stored search by id. Expired entries are treated as missing.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.ExpiresAt) {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Len returns the number of stored entries, including any not yet evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cleanupLocked removes expired entries. Caller holds s.mu.
func (s *Store) cleanupLocked(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	expired := 0
	for id, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, id)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug().Int("expired_entries", expired).Msg("cleaned up expired searches")
	}
}
