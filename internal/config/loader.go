// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, empty for ENV-only configuration.
func (l *Loader) Path() string { return l.configPath }

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if cfg.Store.Kind == "dir" && cfg.Store.Path != "" {
		if abs, err := filepath.Abs(cfg.Store.Path); err == nil {
			cfg.Store.Path = abs
		}
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg with STRICT parsing. Keys absent from
// the file keep their current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv applies MEAMOVIE_* overrides on top of cfg.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	s := &cfg.Store
	s.Kind = l.envString("STORE_KIND", s.Kind)
	s.Path = l.envString("STORE_PATH", s.Path)
	s.URL = l.envString("STORE_URL", s.URL)
	s.Group = l.envString("STORE_GROUP", s.Group)
	s.RateLimit = l.envFloat("STORE_RATE_LIMIT", s.RateLimit)
	s.Burst = l.envInt("STORE_BURST", s.Burst)
	s.Retries = l.envInt("STORE_RETRIES", s.Retries)
	s.Timeout = l.envDuration("STORE_TIMEOUT", s.Timeout)

	c := &cfg.Cache
	c.Kind = l.envString("CACHE_KIND", c.Kind)
	c.TTL = l.envDuration("CACHE_TTL", c.TTL)
	c.MaxBytes = l.envInt64("CACHE_MAX_BYTES", c.MaxBytes)
	c.Redis.Addr = l.envString("CACHE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = l.envString("CACHE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = l.envInt("CACHE_REDIS_DB", c.Redis.DB)
	c.Badger.Path = l.envString("CACHE_BADGER_PATH", c.Badger.Path)

	cfg.Playback.Speed = l.envFloat("PLAYBACK_SPEED", cfg.Playback.Speed)
	cfg.Playback.FPS = l.envInt("PLAYBACK_FPS", cfg.Playback.FPS)

	o := &cfg.Overlay
	o.Persistence = l.envDuration("OVERLAY_PERSISTENCE", o.Persistence)
	o.Refresh = l.envDuration("OVERLAY_REFRESH", o.Refresh)
	o.PeakOpacity = l.envFloat("OVERLAY_PEAK_OPACITY", o.PeakOpacity)

	r := &cfg.Render
	r.Width = l.envInt("RENDER_WIDTH", r.Width)
	r.Height = l.envInt("RENDER_HEIGHT", r.Height)
	r.Padding = l.envFloat("RENDER_PADDING", r.Padding)
	r.RadiusFactor = l.envFloat("RENDER_RADIUS_FACTOR", r.RadiusFactor)
	r.DefaultRadius = l.envFloat("RENDER_DEFAULT_RADIUS", r.DefaultRadius)
	r.MinHitRadius = l.envFloat("RENDER_MIN_HIT_RADIUS", r.MinHitRadius)
	r.RingWidth = l.envFloat("RENDER_RING_WIDTH", r.RingWidth)
	r.Contrast = l.envFloat("RENDER_CONTRAST", r.Contrast)
	r.ContrastPivot = l.envFloat("RENDER_CONTRAST_PIVOT", r.ContrastPivot)
	r.ContrastScale = l.envFloat("RENDER_CONTRAST_SCALE", r.ContrastScale)
	r.Colormap = l.envString("RENDER_COLORMAP", r.Colormap)
	r.Background = l.envString("RENDER_BACKGROUND", r.Background)
	r.RingColor = l.envString("RENDER_RING_COLOR", r.RingColor)

	cfg.View.Type = l.envString("VIEW_TYPE", cfg.View.Type)
	cfg.View.RatesGroup = l.envString("VIEW_RATES_GROUP", cfg.View.RatesGroup)

	cfg.API.Listen = l.envString("API_LISTEN", cfg.API.Listen)
	cfg.API.RateLimit = l.envInt("API_RATE_LIMIT", cfg.API.RateLimit)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString("TELEMETRY_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.Sampling = l.envFloat("TELEMETRY_SAMPLING", t.Sampling)
}
