// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return mr, newRedisCache(client, "", zerolog.Nop())
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "raw_data/0.0", []byte{0x01, 0xff}, 5*time.Minute)

	val, found := cache.Get(ctx, "raw_data/0.0")
	if !found {
		t.Fatal("expected value to be found")
	}
	if string(val) != string([]byte{0x01, 0xff}) {
		t.Errorf("unexpected value %v", val)
	}

	if !mr.Exists("meamovie:chunk:raw_data/0.0") {
		t.Error("expected key to be stored under the default prefix")
	}

	stats := cache.Stats()
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.CurrentSize != 1 {
		t.Errorf("expected size 1, got %d", stats.CurrentSize)
	}
}

func TestRedisCache_GetMissing(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	defer cache.Close()

	val, found := cache.Get(context.Background(), "nonexistent")
	if found {
		t.Error("expected value to not be found")
	}
	if val != nil {
		t.Errorf("expected nil value, got %v", val)
	}
	if cache.Stats().Misses != 1 {
		t.Errorf("expected 1 miss")
	}
}

func TestRedisCache_TTL(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	if _, found := cache.Get(ctx, "k"); found {
		t.Error("expected key to expire")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "k", []byte("v"), time.Minute)
	cache.Delete(ctx, "k")
	if _, found := cache.Get(ctx, "k"); found {
		t.Error("expected key to be deleted")
	}
}

func TestNewRedisCache_ConnectionFailure(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisCache(RedisConfig{Addr: addr}, zerolog.Nop()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestNewRedisCache_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), Prefix: "t:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
