// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options selects and configures a chunk cache backend.
type Options struct {
	Kind       string // "none", "memory", "redis" or "badger"
	MaxBytes   int64
	Redis      RedisConfig
	BadgerPath string
}

// Open creates a Cache based on the backend configuration.
func Open(opts Options, logger zerolog.Logger) (Cache, error) {
	switch opts.Kind {
	case "", "none":
		return NewNoOpCache(), nil
	case "memory":
		return NewMemoryCache(opts.MaxBytes, time.Minute), nil
	case "redis":
		c, err := NewRedisCache(opts.Redis, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "badger":
		if opts.BadgerPath == "" {
			return nil, fmt.Errorf("badger cache requires a path")
		}
		c, err := OpenBadgerCache(opts.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.Kind)
	}
}
