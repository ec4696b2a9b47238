// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/meamovie/internal/colormap"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/validate"
)

// Validate rejects out-of-range values. Every failure is reported, wrapped in
// ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	// Store
	v.OneOf("store.kind", cfg.Store.Kind, []string{"dir", "http"})
	switch cfg.Store.Kind {
	case "dir":
		if cfg.Store.Path != "" {
			v.Directory("store.path", cfg.Store.Path)
		}
	case "http":
		if cfg.Store.URL != "" {
			v.URL("store.url", cfg.Store.URL, []string{"http", "https"})
		}
	}
	v.PositiveFloat("store.rateLimit", cfg.Store.RateLimit)
	v.Positive("store.burst", cfg.Store.Burst)
	v.Range("store.retries", cfg.Store.Retries, -1, 10)
	v.DurationRange("store.timeout", cfg.Store.Timeout, 100*time.Millisecond, 5*time.Minute)

	// Chunk cache
	v.OneOf("cache.kind", cfg.Cache.Kind, []string{"none", "memory", "redis", "badger"})
	switch cfg.Cache.Kind {
	case "redis":
		v.NotEmpty("cache.redis.addr", cfg.Cache.Redis.Addr)
	case "badger":
		v.NotEmpty("cache.badger.path", cfg.Cache.Badger.Path)
	}
	v.DurationRange("cache.ttl", cfg.Cache.TTL, 0, 30*24*time.Hour)
	if cfg.Cache.MaxBytes < 0 {
		v.AddError("cache.maxBytes", "value cannot be negative", cfg.Cache.MaxBytes)
	}

	// Playback
	v.PositiveFloat("playback.speed", cfg.Playback.Speed)
	v.Range("playback.fps", cfg.Playback.FPS, 1, 240)

	// Overlay
	v.DurationRange("overlay.persistence", cfg.Overlay.Persistence, 10*time.Millisecond, time.Minute)
	v.DurationRange("overlay.refresh", cfg.Overlay.Refresh, time.Millisecond, cfg.Overlay.Persistence)
	v.FloatRange("overlay.peakOpacity", cfg.Overlay.PeakOpacity, 0, 1)

	// Render
	r := cfg.Render
	v.Range("render.width", r.Width, 1, 8192)
	v.Range("render.height", r.Height, 1, 8192)
	v.FloatRange("render.padding", r.Padding, 0, 4096)
	v.FloatRange("render.radiusFactor", r.RadiusFactor, 0.01, 1)
	v.PositiveFloat("render.defaultRadius", r.DefaultRadius)
	v.FloatRange("render.minHitRadius", r.MinHitRadius, 0, 4096)
	v.FloatRange("render.ringWidth", r.RingWidth, 0, 1)
	v.FloatRange("render.contrast", r.Contrast, 0, 100)
	v.FloatRange("render.contrastPivot", r.ContrastPivot, 0, 100)
	v.PositiveFloat("render.contrastScale", r.ContrastScale)
	if _, ok := colormap.ByName(r.Colormap); !ok {
		v.AddError("render.colormap", fmt.Sprintf("unknown colormap (have %v)", colormap.Names()), r.Colormap)
	}
	v.Custom("render.background", r.Background, parseColor)
	v.Custom("render.ringColor", r.RingColor, parseColor)

	// View
	v.NotEmpty("view.type", cfg.View.Type)

	// API
	v.ListenAddr("api.listen", cfg.API.Listen)
	v.NonNegative("api.rateLimit", cfg.API.RateLimit)

	// Logging
	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}

	// Telemetry
	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("telemetry.sampling", cfg.Telemetry.Sampling, 0, 1)

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func parseColor(value any) error {
	s, _ := value.(string)
	_, err := render.ParseColor(s)
	return err
}
