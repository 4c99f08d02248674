package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(clock *fakeClock) *Cache {
	return New(Options{TTL: 5 * time.Minute, CleanupInterval: time.Minute, Now: clock.Now})
}

func TestGetRespectsTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("k", "v")

	clock.Advance(5*time.Minute - time.Nanosecond)
	v, ok := c.Get("k")
	require.True(t, ok, "entry just inside TTL should be a hit")
	assert.Equal(t, "v", v)

	clock.Advance(2 * time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry just past TTL should be absent")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(newFakeClock())

	_, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
	assert.Equal(t, uint64(0), c.Stats().Hits)
}

func TestPeekLeavesCounters(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	_, ok := c.Peek("k")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(5 * time.Minute)
	_, ok = c.Peek("k")
	assert.False(t, ok, "expired entry is absent")
	assert.Equal(t, 1, c.Len(), "peek never deletes")

	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestSetOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("k", 1)
	clock.Advance(4 * time.Minute)
	c.Set("k", 2)
	clock.Advance(4 * time.Minute)

	// the second Set reset the timestamp
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestKeyDeterminism(t *testing.T) {
	a := Key("searchCode", map[string]any{"query": "foo", "count": 50, "patternType": "literal"})
	b := Key("searchCode", map[string]any{"patternType": "literal", "query": "foo", "count": 50})
	assert.Equal(t, a, b, "same parameters must map to the same key")

	c := Key("searchCode", map[string]any{"query": "foo", "count": 51, "patternType": "literal"})
	assert.NotEqual(t, a, c, "different parameters must map to different keys")

	d := Key("findDuplicates", map[string]any{"query": "foo", "count": 50, "patternType": "literal"})
	assert.NotEqual(t, a, d, "different operations must never collide")

	type params struct {
		Name string
		Type string
	}
	assert.Equal(t, Key("op", params{"a", "b"}), Key("op", params{"a", "b"}))
	assert.NotEqual(t, Key("op", params{"ab", ""}), Key("op", params{"a", "b"}))
}

func TestCleanupEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("old-%d", i), i)
	}
	clock.Advance(3 * time.Minute)
	for i := 0; i < 6; i++ {
		c.Set(fmt.Sprintf("new-%d", i), i)
	}
	require.Equal(t, 10, c.Len())

	// old entries are now 5m1s old, new ones 2m1s
	clock.Advance(2*time.Minute + time.Second)

	before := c.Stats().Evictions
	removed := c.Cleanup()

	assert.Equal(t, 4, removed)
	assert.Equal(t, 6, c.Len())
	assert.Equal(t, before+4, c.Stats().Evictions)

	for i := 0; i < 6; i++ {
		_, ok := c.Get(fmt.Sprintf("new-%d", i))
		assert.True(t, ok)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(newFakeClock())
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 3, c.Clear())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Clear())
}

func TestCapacityEvictionCounted(t *testing.T) {
	c := New(Options{MaxEntries: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestLookup(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set("n", 42)

	n, ok := Lookup[int](c, "n")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = Lookup[string](c, "n")
	assert.False(t, ok, "wrong type is treated as absent")
}

func TestSweepRunsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(Options{TTL: 10 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	c.Start()
	c.Start() // second call is a no-op

	c.Set("short", "lived")
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, c.Stats().Evictions, uint64(1))

	c.Close()
	c.Close()
}

func TestCloseWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(Options{})
	c.Set("k", "v")
	c.Close()
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%20)
				c.Set(key, w)
				c.Get(key)
				if i%50 == 0 {
					c.Cleanup()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 20)
	stats := c.Stats()
	assert.Equal(t, uint64(8*200), stats.Hits+stats.Misses)
}

func TestHitRatio(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRatio())
	assert.InDelta(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRatio(), 1e-9)
}
