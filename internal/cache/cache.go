// Package cache stores prior query results with per-entry timestamps, a
// background expiry sweep and hit/miss accounting.
//
// The cache is the only state shared by concurrent search operations. A single
// RWMutex guards the underlying LRU: Get and Set take the read side (the LRU is
// itself safe for concurrent use), Cleanup and Clear take the write side so a
// sweep never interleaves with a lookup.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
)

// Defaults
const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 60 * time.Second
	DefaultMaxEntries      = 10000
)

// Entry is a stored value and the time it was stored. Entries are replaced
// wholesale on Set and never mutated.
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// Stats holds running counters for the process lifetime. Hits and Misses
// count Get calls only; Peek leaves them untouched.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// HitRatio returns hits / (hits + misses), or 0 with no lookups
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Options configures a Cache
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxEntries      int
	Now             func() time.Time // defaults to time.Now
	Logger          *zap.Logger
	Reporter        incident.Reporter
}

// Cache is a TTL cache keyed by operation and parameters
type Cache struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, *Entry]

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	reporter incident.Reporter

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a cache. The sweep does not run until Start is called.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reporter == nil {
		opts.Reporter = incident.Nop{}
	}

	entries, err := lru.New[string, *Entry](opts.MaxEntries)
	if err != nil {
		// Should never happen with positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Cache{
		entries:  entries,
		ttl:      opts.TTL,
		interval: opts.CleanupInterval,
		now:      opts.Now,
		logger:   logging.Component(opts.Logger, "cache"),
		reporter: opts.Reporter,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// TTL returns the configured time-to-live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it is younger than the TTL
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries.Peek(key)
	if ok && c.now().Sub(entry.StoredAt) < c.ttl {
		// refresh recency for capacity eviction
		c.entries.Get(key)
		c.mu.RUnlock()
		c.hits.Add(1)
		c.logger.Debug("cache hit", zap.String(logging.FieldOperation, "cache.get"), zap.String("key", key))
		return entry.Value, true
	}
	c.mu.RUnlock()

	c.misses.Add(1)
	c.logger.Debug("cache miss",
		zap.String(logging.FieldOperation, "cache.get"),
		zap.String("key", key),
		zap.Bool("expired", ok),
	)
	return nil, false
}

// Peek returns the value stored under key if it is younger than the TTL,
// without counting a hit or miss and without refreshing recency
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries.Peek(key)
	if !ok || c.now().Sub(entry.StoredAt) >= c.ttl {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key with the current time, replacing any entry
func (c *Cache) Set(key string, value any) {
	entry := &Entry{Key: key, Value: value, StoredAt: c.now()}

	c.mu.RLock()
	evicted := c.entries.Add(key, entry)
	c.mu.RUnlock()

	if evicted {
		c.evictions.Add(1)
	}
	c.logger.Debug("cache set",
		zap.String(logging.FieldOperation, "cache.set"),
		zap.String("key", key),
		zap.Bool("capacityEviction", evicted),
	)
}

// Cleanup removes every entry older than the TTL and returns how many were removed
func (c *Cache) Cleanup() int {
	removed, remaining := c.removeExpired(c.now())

	c.evictions.Add(uint64(removed))
	c.logger.Debug("cache cleanup",
		zap.String(logging.FieldOperation, "cache.cleanup"),
		zap.Int("removed", removed),
		zap.Int("remaining", remaining),
	)
	return removed
}

func (c *Cache) removeExpired(now time.Time) (removed, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(entry.StoredAt) >= c.ttl {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed, c.entries.Len()
}

// Clear removes all entries immediately and returns how many were removed
func (c *Cache) Clear() int {
	c.mu.Lock()
	n := c.entries.Len()
	c.entries.Purge()
	c.mu.Unlock()

	c.logger.Info("cache cleared", zap.String(logging.FieldOperation, "cache.clear"), zap.Int("removed", n))
	return n
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}

// Start launches the periodic sweep. Calling it more than once has no effect.
func (c *Cache) Start() {
	c.startOnce.Do(func() {
		go c.sweepLoop()
	})
}

// Close stops the sweep, waits for it to exit and releases all entries. It
// is safe to call more than once and without Start.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		started := true
		c.startOnce.Do(func() { started = false })
		if started {
			<-c.done
		}
		c.Clear()
	})
}

func (c *Cache) sweepLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep runs one cleanup pass; a failing pass is reported and the loop continues
func (c *Cache) sweep() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("cache sweep panic: %v", r)
			c.logger.Error("cache cleanup failed", zap.String(logging.FieldOperation, "cache.cleanup"), zap.Error(err))
			c.reporter.Capture(context.Background(), incident.Event{
				Component: "cache",
				Operation: "cleanup",
				Err:       err,
				Extra:     map[string]any{"entries": c.entries.Len()},
				Time:      time.Now(),
			})
		}
	}()
	c.Cleanup()
}

// Key derives a deterministic key from an operation name and its parameters.
// Parameters are canonicalized through JSON, so maps with the same contents
// always produce the same key.
func Key(operation string, params any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%#v", params))
	}
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write(encoded)
	return operation + ":" + hex.EncodeToString(h.Sum(nil))
}

// Lookup is a typed Get
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
