package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/structlay/internal/structure"
)

// Reason explains why an entry left the cache.
type Reason string

const (
	ReasonLRU     Reason = "lru"
	ReasonExpired Reason = "expired"
)

// EvictFunc observes evictions. The cache releases its lock before calling
// it, so implementations may call back into the cache.
type EvictFunc func(Entry, Reason)

const (
	DefaultMaxEntries      = 20
	DefaultMaxAge          = 5 * time.Minute
	DefaultCleanupInterval = 60 * time.Second
)

// Config bounds the cache. Zero values fall back to the defaults above.
type Config struct {
	MaxEntries      int
	MaxAge          time.Duration
	CleanupInterval time.Duration
	OnEvict         EvictFunc
}

// Entry is a read-only copy of a cached page handed to eviction observers.
type Entry struct {
	DocID       string
	Page        int
	Data        *structure.PageStructure
	StoredAt    time.Time
	LastAccess  time.Time
	AccessCount int
	SizeBytes   int
}

type key struct {
	doc  string
	page int
}

type item struct {
	key         key
	data        *structure.PageStructure
	storedAt    time.Time
	lastAccess  time.Time
	accessCount int
	sizeBytes   int
}

// Cache holds page structures per (document, page) with LRU eviction by
// entry count and a per-entry TTL. Expiry is enforced lazily on Get and by
// the background sweep launched with Start; the sweep is housekeeping, not
// required for correctness. All methods are safe for concurrent use.
//
// Byte sizes are serialized-length estimates kept for observability only.
// The cache is bounded by entry count, never by bytes.
type Cache struct {
	mu    sync.Mutex
	ll    *list.List
	items map[key]*list.Element

	cfg Config
	log *slog.Logger

	hits      int64
	misses    int64
	evictions int64
	sizeBytes int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, log *slog.Logger) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return &Cache{
		ll:    list.New(),
		items: make(map[key]*list.Element),
		cfg:   cfg,
		log:   log,
	}
}

// Get returns the cached structure for a page and promotes the entry to
// most-recently-used. An entry older than MaxAge is evicted and counted as
// a miss.
func (c *Cache) Get(docID string, page int) (*structure.PageStructure, bool) {
	now := time.Now()

	c.mu.Lock()
	el, ok := c.items[key{docID, page}]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	it := el.Value.(*item)
	if now.Sub(it.storedAt) > c.cfg.MaxAge {
		expired := c.removeLocked(el, it)
		c.misses++
		c.evictions++
		c.mu.Unlock()
		c.notify(expired, ReasonExpired)
		return nil, false
	}
	it.lastAccess = now
	it.accessCount++
	c.ll.MoveToFront(el)
	c.hits++
	data := it.data
	c.mu.Unlock()
	return data, true
}

// Set inserts or replaces the structure for a page. When the cache is full
// the least-recently-used entry is evicted first.
func (c *Cache) Set(docID string, page int, data *structure.PageStructure) {
	size := 0
	if b, err := json.Marshal(data); err == nil {
		size = len(b)
	}
	now := time.Now()

	c.mu.Lock()
	k := key{docID, page}
	if el, ok := c.items[k]; ok {
		it := el.Value.(*item)
		c.sizeBytes += int64(size - it.sizeBytes)
		it.data = data
		it.storedAt = now
		it.lastAccess = now
		it.sizeBytes = size
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	c.items[k] = c.ll.PushFront(&item{key: k, data: data, storedAt: now, lastAccess: now, sizeBytes: size})
	c.sizeBytes += int64(size)

	var evicted []Entry
	for c.ll.Len() > c.cfg.MaxEntries {
		back := c.ll.Back()
		c.evictions++
		evicted = append(evicted, c.removeLocked(back, back.Value.(*item)))
	}
	c.mu.Unlock()

	for _, e := range evicted {
		c.notify(e, ReasonLRU)
	}
}

// Has reports whether a fresh entry exists. It neither promotes nor evicts,
// and it does not touch the hit/miss counters.
func (c *Cache) Has(docID string, page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key{docID, page}]
	if !ok {
		return false
	}
	return time.Since(el.Value.(*item).storedAt) <= c.cfg.MaxAge
}

// Delete removes a single page. Explicit removal does not count as an
// eviction and does not invoke OnEvict.
func (c *Cache) Delete(docID string, page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key{docID, page}]
	if !ok {
		return false
	}
	c.dropLocked(el, el.Value.(*item))
	return true
}

// DeleteDocument removes every cached page of a document, for example after
// the document has been reprocessed upstream. Returns the number of entries
// removed.
func (c *Cache) DeleteDocument(docID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		it := el.Value.(*item)
		if it.key.doc == docID {
			c.dropLocked(el, it)
			removed++
		}
		el = next
	}
	return removed
}

// Clear removes all entries. Counters keep accumulating across Clear.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[key]*list.Element)
	c.sizeBytes = 0
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Cleanup sweeps expired entries.
func (c *Cache) Cleanup() {
	now := time.Now()

	c.mu.Lock()
	var expired []Entry
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		it := el.Value.(*item)
		if now.Sub(it.storedAt) > c.cfg.MaxAge {
			c.evictions++
			expired = append(expired, c.removeLocked(el, it))
		}
		el = next
	}
	c.mu.Unlock()

	for _, e := range expired {
		c.notify(e, ReasonExpired)
	}
	if len(expired) > 0 && c.log != nil {
		c.log.Debug("cache sweep", "expired", len(expired))
	}
}

// Start launches the background expiry sweep.
func (c *Cache) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// StatsSnapshot is a point-in-time aggregate of cache counters.
type StatsSnapshot struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"size_bytes"`
	HitRate   float64 `json:"hit_rate"`
}

// Snapshot returns current counters. HitRate is 0 until the first lookup.
func (c *Cache) Snapshot() StatsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := StatsSnapshot{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.ll.Len(),
		SizeBytes: c.sizeBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// removeLocked unlinks an entry, counts it against sizeBytes, and returns
// the observer copy. The caller is responsible for the evictions counter.
func (c *Cache) removeLocked(el *list.Element, it *item) Entry {
	c.dropLocked(el, it)
	return Entry{
		DocID:       it.key.doc,
		Page:        it.key.page,
		Data:        it.data,
		StoredAt:    it.storedAt,
		LastAccess:  it.lastAccess,
		AccessCount: it.accessCount,
		SizeBytes:   it.sizeBytes,
	}
}

func (c *Cache) dropLocked(el *list.Element, it *item) {
	c.ll.Remove(el)
	delete(c.items, it.key)
	c.sizeBytes -= int64(it.sizeBytes)
}

func (c *Cache) notify(e Entry, r Reason) {
	if c.cfg.OnEvict != nil {
		c.cfg.OnEvict(e, r)
	}
}
