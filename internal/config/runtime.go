// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
	"github.com/ManuGH/meamovie/internal/cache"
	"github.com/ManuGH/meamovie/internal/overlay"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/telemetry"
)

// RenderConfig converts the render section. Colors that fail to parse keep
// the renderer defaults; Validate reports them.
func (c AppConfig) RenderConfig() render.Config {
	out := render.DefaultConfig()
	out.Padding = c.Render.Padding
	out.RadiusFactor = c.Render.RadiusFactor
	out.DefaultRadius = c.Render.DefaultRadius
	out.MinHitRadius = c.Render.MinHitRadius
	out.RingWidthFactor = c.Render.RingWidth
	out.ContrastPivot = c.Render.ContrastPivot
	out.ContrastScale = c.Render.ContrastScale
	if bg, err := render.ParseColor(c.Render.Background); err == nil {
		out.Background = bg
	}
	if ring, err := render.ParseColor(c.Render.RingColor); err == nil {
		out.RingColor = ring
	}
	return out
}

// OverlayConfig converts the overlay section.
func (c AppConfig) OverlayConfig() overlay.Config {
	return overlay.Config{
		Persistence: c.Overlay.Persistence,
		Refresh:     c.Overlay.Refresh,
		PeakOpacity: c.Overlay.PeakOpacity,
	}
}

// CacheOptions converts the cache section.
func (c AppConfig) CacheOptions() cache.Options {
	return cache.Options{
		Kind:     c.Cache.Kind,
		MaxBytes: c.Cache.MaxBytes,
		Redis: cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
		},
		BadgerPath: c.Cache.Badger.Path,
	}
}

// HTTPOptions converts the HTTP store settings.
func (c AppConfig) HTTPOptions() zarr.HTTPOptions {
	return zarr.HTTPOptions{
		Timeout:   c.Store.Timeout,
		RateLimit: rate.Limit(c.Store.RateLimit),
		Burst:     c.Store.Burst,
		Retries:   c.Store.Retries,
	}
}

// TelemetryConfig converts the telemetry section.
func (c AppConfig) TelemetryConfig(service string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    service,
		ServiceVersion: c.Version,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.Sampling,
	}
}

// FrameInterval is the host loop paint period.
func (c AppConfig) FrameInterval() time.Duration {
	if c.Playback.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Playback.FPS)
}
