// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	c.Set(ctx, "raw_data/0.0", []byte{1, 2, 3}, 5*time.Minute)

	val, ok := c.Get(ctx, "raw_data/0.0")
	require.True(t, ok, "expected to find chunk")
	assert.Equal(t, []byte{1, 2, 3}, val)

	_, ok = c.Get(ctx, "nonexistent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, int64(3), stats.Bytes)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0).(*memoryCache)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", []byte("v"), 50*time.Millisecond)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(100 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "expected key to be expired")
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(6, 0)

	c.Set(ctx, "a", []byte("aa"), 0)
	c.Set(ctx, "b", []byte("bb"), 0)
	c.Set(ctx, "c", []byte("cc"), 0)

	// Touch "a" so "b" becomes the oldest.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "d", []byte("dd"), 0)

	_, ok = c.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(ctx, k)
		assert.True(t, ok, "expected %s to survive", k)
	}
	assert.LessOrEqual(t, c.Stats().Bytes, int64(6))
}

func TestMemoryCache_RejectsOversizedValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	c.Set(ctx, "big", []byte("toolarge"), 0)
	_, ok := c.Get(ctx, "big")
	assert.False(t, ok)
}

func TestMemoryCache_JanitorStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(0, 5*time.Millisecond)
	c.Set(context.Background(), "k", []byte("v"), time.Millisecond)
	require.Eventually(t, func() bool { return c.Stats().CurrentSize == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close must be idempotent")
}

func TestBadgerCache_InMemory(t *testing.T) {
	ctx := context.Background()
	c, err := OpenBadgerCache("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "raw_data/3.0", []byte{9, 8, 7}, time.Hour)
	got, ok := c.Get(ctx, "raw_data/3.0")
	require.True(t, ok)
	assert.Equal(t, []byte{9, 8, 7}, got)

	stats := c.Stats()
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	c.Delete(ctx, "raw_data/3.0")
	_, ok = c.Get(ctx, "raw_data/3.0")
	assert.False(t, ok)
}

func TestOpen_Backends(t *testing.T) {
	c, err := Open(Options{Kind: "none"}, zerolog.Nop())
	require.NoError(t, err)
	c.Set(context.Background(), "k", []byte("v"), 0)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok, "no-op cache must never hit")

	_, err = Open(Options{Kind: "badger"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = Open(Options{Kind: "bogus"}, zerolog.Nop())
	assert.Error(t, err)

	c, err = Open(Options{Kind: "memory", MaxBytes: 1024}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
