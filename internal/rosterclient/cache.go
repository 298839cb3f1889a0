package rosterclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

// ErrRefreshCanceled is returned by Refresh when CancelRefresh (or a newer
// refresh) superseded it. The fetched value is discarded.
var ErrRefreshCanceled = errors.New("refresh canceled")

// ResourceKind is what a cache entry holds.
type ResourceKind string

const (
	ResourcePeople  ResourceKind = "people"
	ResourceSummary ResourceKind = "summary"
)

// CacheKey scopes a resource to a community.
type CacheKey struct {
	Kind        ResourceKind
	CommunityID int
}

func PeopleKey(communityID int) CacheKey {
	return CacheKey{Kind: ResourcePeople, CommunityID: communityID}
}

func SummaryKey(communityID int) CacheKey {
	return CacheKey{Kind: ResourceSummary, CommunityID: communityID}
}

func (k CacheKey) String() string { return fmt.Sprintf("%s/%d", k.Kind, k.CommunityID) }

// Fetcher loads a fresh value for key from the read endpoints.
type Fetcher func(ctx context.Context, key CacheKey) (any, error)

// Snapshot is a verbatim copy of one entry, including its absence.
type Snapshot struct {
	Key     CacheKey
	Value   any
	Present bool
	Stale   bool
}

type cacheEntry struct {
	value any
	stale bool
}

type refresh struct {
	cancel context.CancelFunc
}

// Cache maps (kind, community) to the last known value. Values are replaced,
// never mutated in place: Update callbacks must return a new value.
type Cache struct {
	fetch Fetcher

	mu       sync.Mutex
	entries  map[CacheKey]*cacheEntry
	inflight map[CacheKey]*refresh
}

func NewCache(fetch Fetcher) *Cache {
	return &Cache{
		fetch:    fetch,
		entries:  make(map[CacheKey]*cacheEntry),
		inflight: make(map[CacheKey]*refresh),
	}
}

// Get returns the current value, stale or not.
func (c *Cache) Get(key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// IsStale reports whether key is absent or was invalidated.
func (c *Cache) IsStale(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return !ok || e.stale
}

func (c *Cache) Set(key CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{value: value}
}

// Update replaces the value with fn(current). It does nothing and returns
// false when key is absent.
func (c *Cache) Update(key CacheKey, fn func(any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.entries[key] = &cacheEntry{value: fn(e.value), stale: e.stale}
	return true
}

// Invalidate marks key stale so the next Load fetches it again.
func (c *Cache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{value: e.value, stale: true}
	}
}

// Load returns a fresh cached value or fetches one.
func (c *Cache) Load(ctx context.Context, key CacheKey) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !e.stale {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()
	return c.Refresh(ctx, key)
}

// Refresh always fetches key and stores the result unless the refresh was
// canceled meanwhile.
func (c *Cache) Refresh(ctx context.Context, key CacheKey) (any, error) {
	if c.fetch == nil {
		return nil, fmt.Errorf("no fetcher for %s", key)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r := &refresh{cancel: cancel}

	c.mu.Lock()
	if prev, ok := c.inflight[key]; ok {
		prev.cancel()
	}
	c.inflight[key] = r
	c.mu.Unlock()

	value, err := c.fetch(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.inflight[key] == r
	if current {
		delete(c.inflight, key)
	}
	if !current {
		return nil, ErrRefreshCanceled
	}
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", key, err)
	}
	c.entries[key] = &cacheEntry{value: value}
	return value, nil
}

// CancelRefresh aborts an in-flight Refresh of key; its result is dropped.
func (c *Cache) CancelRefresh(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.inflight[key]; ok {
		r.cancel()
		delete(c.inflight, key)
	}
}

func (c *Cache) Snapshot(key CacheKey) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key}
	}
	return Snapshot{Key: key, Value: e.value, Present: true, Stale: e.stale}
}

// Restore puts an entry back exactly as snap captured it.
func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !snap.Present {
		delete(c.entries, snap.Key)
		return
	}
	c.entries[snap.Key] = &cacheEntry{value: snap.Value, stale: snap.Stale}
}

// People returns the cached roster of a community.
func (c *Cache) People(communityID int) ([]attendance.Person, bool) {
	v, ok := c.Get(PeopleKey(communityID))
	if !ok {
		return nil, false
	}
	people, ok := v.([]attendance.Person)
	return people, ok
}

// Summary returns the cached summary of a community.
func (c *Cache) Summary(communityID int) (attendance.EventSummary, bool) {
	v, ok := c.Get(SummaryKey(communityID))
	if !ok {
		return attendance.EventSummary{}, false
	}
	s, ok := v.(attendance.EventSummary)
	return s, ok
}
