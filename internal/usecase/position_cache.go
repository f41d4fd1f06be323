package usecase

import (
	"sort"
	"sync"

	"github.com/stockwallet/backend/internal/domain"
)

type scopeKey struct {
	portfolioID string
	symbol      string
}

// scopeLocks hands out one mutex per (portfolio, symbol) scope so
// append-invalidate-recompute sequences for the same scope serialize
// while disjoint scopes proceed in parallel.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[scopeKey]*sync.Mutex
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[scopeKey]*sync.Mutex)}
}

// Lock acquires the scope's mutex and returns its unlock function.
func (l *scopeLocks) Lock(portfolioID, symbol string) func() {
	key := scopeKey{portfolioID, symbol}

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// LockMany acquires several scope mutexes in one stable order, so
// writers touching overlapping scope sets cannot deadlock each other.
// The returned function releases them in reverse.
func (l *scopeLocks) LockMany(keys []scopeKey) func() {
	sorted := append([]scopeKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].portfolioID != sorted[j].portfolioID {
			return sorted[i].portfolioID < sorted[j].portfolioID
		}
		return sorted[i].symbol < sorted[j].symbol
	})

	unlocks := make([]func(), 0, len(sorted))
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		unlocks = append(unlocks, l.Lock(key.portfolioID, key.symbol))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

type cacheEntry struct {
	position *domain.Position
	version  uint64
	stale    bool
}

// PositionCache holds the last materialized position per scope. Entries
// are invalidated by event writes touching their scope and recomputed
// lazily on the next read.
type PositionCache struct {
	mu      sync.RWMutex
	entries map[scopeKey]*cacheEntry
}

func NewPositionCache() *PositionCache {
	return &PositionCache{entries: make(map[scopeKey]*cacheEntry)}
}

// Get returns a copy of the cached position, or false when the scope is
// absent or stale.
func (c *PositionCache) Get(portfolioID, symbol string) (*domain.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[scopeKey{portfolioID, symbol}]
	if !ok || entry.stale {
		return nil, false
	}
	copied := *entry.position
	return &copied, true
}

// Put stores a freshly computed position and bumps the scope's version.
func (c *PositionCache) Put(pos *domain.Position) {
	key := scopeKey{pos.PortfolioID, pos.Symbol}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	entry.position = pos
	entry.version++
	entry.stale = false
}

// Invalidate marks the scope stale. A missing scope is a no-op: the
// position will be computed on first read anyway.
func (c *PositionCache) Invalidate(portfolioID, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[scopeKey{portfolioID, symbol}]; ok {
		entry.stale = true
	}
}

// Version returns the scope's recompute counter, zero when never
// materialized.
func (c *PositionCache) Version(portfolioID, symbol string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.entries[scopeKey{portfolioID, symbol}]; ok {
		return entry.version
	}
	return 0
}
