package sqlitekv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache opens a cache with a pinned clock in a temp directory.
func newTestCache(t *testing.T, defaultTTL time.Duration, clock *fakeClock) *Cache {
	t.Helper()
	c, err := OpenCache(t.TempDir(), "cache", defaultTTL, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// physicalRows counts rows directly, including expired ones invisible to
// reads.
func physicalRows(t *testing.T, c *Cache) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM kv_cache").Scan(&n))
	return n
}

func TestCache_RoundTrip(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, 10*time.Second, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestCache_ExpiryBoundary(t *testing.T) {
	start := time.Unix(1_000_000, 0)
	clock := newFakeClock(start)
	c := newTestCache(t, time.Minute, clock)
	ctx := context.Background()

	// Written at T with ttl=10: readable through T+9, gone at T+10.
	require.NoError(t, c.SetTTL(ctx, "k", []byte("v"), 10*time.Second))

	clock.Advance(9 * time.Second)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found, "value must still be readable at T+9")

	clock.Advance(1 * time.Second)
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "value must be invisible at exactly T+10")

	// At the same instant the row becomes eligible for physical removal.
	removed, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	assert.Zero(t, physicalRows(t, c))
}

func TestCache_Exists(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, 10*time.Second, clock)
	ctx := context.Background()

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "absent key must not exist")

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	// Expiry applies to existence the same as to reads.
	clock.Advance(10 * time.Second)
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired key must not exist")
}

func TestCache_ExpiredRowInvisibleBeforePrune(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, 5*time.Second, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	clock.Advance(10 * time.Second)

	// No prune has run: the row is physically present but already gone
	// from a reader's perspective.
	assert.EqualValues(t, 1, physicalRows(t, c))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_DefaultTTLAndOverride(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, 10*time.Second, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("a")))
	require.NoError(t, c.SetTTL(ctx, "long", []byte("b"), time.Hour))

	clock.Advance(30 * time.Second)

	_, found, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found, "default TTL entry should have expired")

	_, found, err = c.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, found, "per-call TTL overrides the default")
}

func TestCache_OverwriteRefreshesExpiry(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, 10*time.Second, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v1")))
	clock.Advance(8 * time.Second)
	require.NoError(t, c.Set(ctx, "k", []byte("v2")))
	clock.Advance(8 * time.Second)

	// 16s after the first write, but only 8s after the overwrite.
	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v2"), value)
}

func TestCache_PruneAtOpen(t *testing.T) {
	dir := t.TempDir()
	start := time.Unix(1_000_000, 0)

	clock := newFakeClock(start)
	c1, err := OpenCache(dir, "cache", 10*time.Second, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, c1.Set(context.Background(), "k", []byte("v")))
	require.NoError(t, c1.Close())

	// Reopen past the expiry instant: construction prunes eagerly.
	late := newFakeClock(start.Add(time.Minute))
	c2, err := OpenCache(dir, "cache", 10*time.Second, WithClock(late.Now))
	require.NoError(t, err)
	defer c2.Close()

	assert.Zero(t, physicalRows(t, c2), "expired rows must be pruned at construction")
}

func TestCache_GetByPrefixFiltersExpired(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, time.Minute, clock)
	ctx := context.Background()

	require.NoError(t, c.SetTTL(ctx, "p_live", []byte("a"), time.Hour))
	require.NoError(t, c.SetTTL(ctx, "p_dead", []byte("b"), time.Second))
	require.NoError(t, c.SetTTL(ctx, "q_live", []byte("c"), time.Hour))

	clock.Advance(10 * time.Second)

	got, err := c.GetByPrefix(ctx, "p_")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"p_live": []byte("a")}, got)
}

func TestCache_DeleteAndDeleteByPrefix(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "p_1", []byte("a")))
	require.NoError(t, c.Set(ctx, "p_2", []byte("b")))
	require.NoError(t, c.Set(ctx, "q_1", []byte("c")))

	require.NoError(t, c.Delete(ctx, "q_1", "never_written"))
	require.NoError(t, c.DeleteByPrefix(ctx, "p_"))

	assert.Zero(t, physicalRows(t, c))
}

func TestCache_PruneNothingExpired(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c := newTestCache(t, time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	removed, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.EqualValues(t, 1, physicalRows(t, c))
}

func TestOpenCache_RejectsNonPositiveTTL(t *testing.T) {
	_, err := OpenCache(t.TempDir(), "cache", 0)
	assert.Error(t, err)
}

func TestCache_OperationsAfterClose(t *testing.T) {
	clock := newFakeClock(time.Unix(1_000_000, 0))
	c, err := OpenCache(t.TempDir(), "cache", time.Minute, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	err = c.Set(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, ErrClosed)
}
