// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
	"github.com/ManuGH/meamovie/internal/cache"
	"github.com/ManuGH/meamovie/internal/config"
	"github.com/ManuGH/meamovie/internal/daemon"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/version"
)

// storeFlags override the configured store for one-shot commands.
type storeFlags struct {
	path  string
	url   string
	group string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "store", "", "Zarr directory (overrides store.path)")
	cmd.Flags().StringVar(&f.url, "url", "", "Zarr HTTP base URL (overrides store.url)")
	cmd.Flags().StringVar(&f.group, "group", "", "group path inside the store (overrides store.group)")
}

// loadConfig loads the config file and env, applies flag overrides and
// configures logging to stderr.
func loadConfig(opts *rootOptions, sf *storeFlags) (config.AppConfig, error) {
	cfg, err := config.NewLoader(opts.configPath, version.Version).Load()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if sf != nil {
		switch {
		case sf.url != "":
			cfg.Store.Kind, cfg.Store.URL = "http", sf.url
		case sf.path != "":
			cfg.Store.Kind, cfg.Store.Path = "dir", sf.path
		}
		if sf.group != "" {
			cfg.Store.Group = sf.group
		}
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Output: os.Stderr, Service: daemon.ServiceName, Version: cfg.Version})
	return cfg, nil
}

// openGroup opens the configured group behind the configured chunk cache.
// The returned release closes the cache.
func openGroup(ctx context.Context, cfg config.AppConfig, path string) (*zarr.Group, string, func(), error) {
	c, err := cache.Open(cfg.CacheOptions(), log.WithComponent("cache"))
	if err != nil {
		return nil, "", nil, err
	}
	release := func() { _ = c.Close() }
	store, uri, err := daemon.OpenStore(cfg, c)
	if err != nil {
		release()
		return nil, "", nil, err
	}
	g, err := zarr.Open(ctx, store, path)
	if err != nil {
		release()
		return nil, "", nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return g, uri, release, nil
}
