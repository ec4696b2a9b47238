// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Render    RenderConfig    `yaml:"render"`
	View      ViewConfig      `yaml:"view"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects the Zarr backend holding the recording.
type StoreConfig struct {
	Kind  string `yaml:"kind"` // "dir" or "http"
	Path  string `yaml:"path"`
	URL   string `yaml:"url"`
	Group string `yaml:"group"`

	// HTTP backend only.
	RateLimit float64       `yaml:"rateLimit"`
	Burst     int           `yaml:"burst"`
	Retries   int           `yaml:"retries"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig configures the optional chunk cache in front of the store.
type CacheConfig struct {
	Kind     string        `yaml:"kind"` // none, memory, redis or badger
	TTL      time.Duration `yaml:"ttl"`
	MaxBytes int64         `yaml:"maxBytes"`
	Redis    RedisConfig   `yaml:"redis"`
	Badger   BadgerConfig  `yaml:"badger"`
}

// RedisConfig addresses the shared chunk cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BadgerConfig locates the on-disk chunk cache.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// PlaybackConfig holds the initial speed and the paint rate of the host loop.
type PlaybackConfig struct {
	Speed float64 `yaml:"speed"`
	FPS   int     `yaml:"fps"`
}

// OverlayConfig holds the spike decay constants.
type OverlayConfig struct {
	Persistence time.Duration `yaml:"persistence"`
	Refresh     time.Duration `yaml:"refresh"`
	PeakOpacity float64       `yaml:"peakOpacity"`
}

// RenderConfig holds canvas geometry and the initial display settings.
type RenderConfig struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Padding       float64 `yaml:"padding"`
	RadiusFactor  float64 `yaml:"radiusFactor"`
	DefaultRadius float64 `yaml:"defaultRadius"`
	MinHitRadius  float64 `yaml:"minHitRadius"`
	RingWidth     float64 `yaml:"ringWidth"`
	Contrast      float64 `yaml:"contrast"`
	ContrastPivot float64 `yaml:"contrastPivot"`
	ContrastScale float64 `yaml:"contrastScale"`
	Colormap      string  `yaml:"colormap"`
	Background    string  `yaml:"background"`
	RingColor     string  `yaml:"ringColor"`
}

// ViewConfig picks the view type for the main group and the optional
// firing-rate summary group.
type ViewConfig struct {
	Type       string `yaml:"type"`
	RatesGroup string `yaml:"ratesGroup"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Listen    string `yaml:"listen"`
	RateLimit int    `yaml:"rateLimit"` // requests per minute per client, 0 disables
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Exporter string  `yaml:"exporter"` // grpc or http
	Endpoint string  `yaml:"endpoint"`
	Sampling float64 `yaml:"sampling"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Store: StoreConfig{
			Kind:      "dir",
			RateLimit: 200,
			Burst:     50,
			Retries:   2,
			Timeout:   10 * time.Second,
		},
		Cache: CacheConfig{
			Kind:     "none",
			TTL:      10 * time.Minute,
			MaxBytes: 256 << 20,
		},
		Playback: PlaybackConfig{Speed: 1, FPS: 60},
		Overlay: OverlayConfig{
			Persistence: 500 * time.Millisecond,
			Refresh:     50 * time.Millisecond,
			PeakOpacity: 0.9,
		},
		Render: RenderConfig{
			Width:         800,
			Height:        600,
			Padding:       20,
			RadiusFactor:  0.95,
			DefaultRadius: 5,
			MinHitRadius:  4,
			RingWidth:     0.3,
			Contrast:      40,
			ContrastPivot: 40,
			ContrastScale: 10,
			Colormap:      "grayscale",
			Background:    "#000000",
			RingColor:     "#ffffff",
		},
		View:      ViewConfig{Type: "realtime512.MEAMovie"},
		API:       APIConfig{Listen: ":8080", RateLimit: 600},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{Exporter: "grpc", Endpoint: "localhost:4317", Sampling: 1},
	}
}
