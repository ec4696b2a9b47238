// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ManuGH/meamovie/internal/config"
	"github.com/ManuGH/meamovie/internal/health"
	"github.com/ManuGH/meamovie/internal/log"
)

// Serve loads the configuration, opens the recording and serves the API
// until ctx is cancelled.
func Serve(ctx context.Context, loader *config.Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Service: ServiceName, Version: cfg.Version})
	logger := log.WithComponent("daemon")
	if path := loader.Path(); path != "" {
		logger.Info().Str("config", path).Strs("env", slices.Sorted(maps.Keys(loader.ConsumedEnvKeys))).Msg("configuration loaded")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}

	rt, err := Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	mgr, err := NewManager(DefaultServerConfig(cfg.API.Listen), Deps{Logger: logger, APIHandler: rt.Server.Handler()})
	if err != nil {
		return errors.Join(err, rt.Close(context.WithoutCancel(ctx)))
	}
	mgr.RegisterShutdownHook("runtime", rt.Close)

	var holder *config.Holder
	if loader.Path() != "" {
		holder = config.NewHolder(cfg, loader)
	}
	return NewApp(logger, mgr, holder, rt).Run(ctx)
}
