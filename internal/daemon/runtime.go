// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/meamovie/internal/api"
	"github.com/ManuGH/meamovie/internal/api/middleware"
	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
	"github.com/ManuGH/meamovie/internal/cache"
	"github.com/ManuGH/meamovie/internal/config"
	"github.com/ManuGH/meamovie/internal/health"
	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/registry"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/resilience"
	"github.com/ManuGH/meamovie/internal/telemetry"
	"github.com/ManuGH/meamovie/internal/viewer"
)

// ServiceName identifies the process in logs and traces.
const ServiceName = "meamovie"

// Runtime is everything a serving process owns: the host loop, the open
// views and the HTTP surface over them.
type Runtime struct {
	Loop     *host.Loop
	Renderer *render.Renderer
	Movie    *viewer.Movie
	Rates    *viewer.RatesView
	Health   *health.Manager
	Server   *api.Server

	cfg       config.AppConfig
	cache     cache.Cache
	telemetry *telemetry.Provider
	logger    zerolog.Logger

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// Bootstrap opens the configured recording and starts the host loop. The
// caller must Close the runtime.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *Runtime, err error) {
	logger := log.WithComponent("daemon")
	rt := &Runtime{cfg: cfg, logger: logger, loopDone: make(chan struct{})}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	if rt.telemetry, err = telemetry.NewProvider(ctx, cfg.TelemetryConfig(ServiceName)); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if rt.cache, err = cache.Open(cfg.CacheOptions(), log.WithComponent("cache")); err != nil {
		return nil, fmt.Errorf("chunk cache: %w", err)
	}

	rt.Loop = host.NewLoop(host.LoopOptions{FrameInterval: cfg.FrameInterval()})
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancelLoop = cancel
	go func() {
		defer close(rt.loopDone)
		_ = rt.Loop.Run(loopCtx)
	}()

	rt.Renderer = render.New(cfg.RenderConfig())
	rt.Health = health.NewManager(cfg.Version)

	store, uri, err := OpenStore(cfg, rt.cache)
	if err != nil {
		return nil, err
	}
	rt.Health.RegisterChecker(health.NewStoreChecker(store, joinKey(cfg.Store.Group, ".zgroup")))
	rt.Health.RegisterChecker(health.NewCacheChecker(cfg.Cache.Kind, rt.cache))
	if hs, ok := unwrapHTTP(store); ok {
		rt.Health.RegisterChecker(health.NewFuncChecker("store_breaker", func(context.Context) health.CheckResult {
			if st := hs.BreakerState(); st == resilience.StateOpen {
				return health.CheckResult{Status: health.StatusDegraded, Message: "circuit " + string(st)}
			}
			return health.CheckResult{Status: health.StatusHealthy, Message: "circuit closed"}
		}))
	}

	reg := registry.New()
	if err := viewer.Register(reg); err != nil {
		return nil, err
	}
	deps := registry.Deps{
		Scheduler: rt.Loop,
		Renderer:  rt.Renderer,
		URI:       uri,
		Speed:     cfg.Playback.Speed,
		Overlay:   cfg.OverlayConfig(),
		Colormap:  cfg.Render.Colormap,
		Contrast:  cfg.Render.Contrast,
	}

	group, err := zarr.Open(ctx, store, cfg.Store.Group)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", uri, err)
	}
	if err := rt.openView(ctx, reg, viewTypeOf(group, cfg.View.Type), group, deps); err != nil {
		return nil, err
	}
	if cfg.View.RatesGroup != "" && rt.Rates == nil {
		rg, err := zarr.Open(ctx, store, cfg.View.RatesGroup)
		if err != nil {
			return nil, fmt.Errorf("open rates group: %w", err)
		}
		if err := rt.openView(ctx, reg, viewer.RatesViewType, rg, deps); err != nil {
			return nil, err
		}
	}
	if rt.Movie != nil {
		movie := rt.Movie
		rt.Health.RegisterChecker(health.NewFuncChecker("view", func(ctx context.Context) health.CheckResult {
			var lastErr error
			if err := rt.Loop.Call(ctx, func() { lastErr = movie.LastError() }); err != nil {
				return health.CheckResult{Status: health.StatusUnhealthy, Message: "host loop unavailable", Error: err.Error()}
			}
			if lastErr != nil {
				return health.CheckResult{Status: health.StatusDegraded, Message: "last frame fetch failed", Error: lastErr.Error()}
			}
			return health.CheckResult{Status: health.StatusHealthy}
		}))
	}

	rt.Server = api.New(api.Config{
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
		Stack: middleware.StackConfig{
			EnableMetrics:  true,
			EnableLogging:  true,
			TracingService: tracingService(cfg),
			RateLimit:      cfg.API.RateLimit,
		},
	}, api.Deps{Caller: rt.Loop, Movie: rt.Movie, Rates: rt.Rates, Health: rt.Health})

	logger.Info().
		Str(log.FieldRecording, uri).
		Bool("movie", rt.Movie != nil).
		Bool("rates", rt.Rates != nil).
		Msg("runtime ready")
	return rt, nil
}

func (rt *Runtime) openView(ctx context.Context, reg *registry.Registry, viewType string, group arraystore.Group, deps registry.Deps) error {
	v, err := reg.Open(ctx, viewType, group, deps)
	if err != nil {
		return fmt.Errorf("open %s view: %w", viewType, err)
	}
	switch v := v.(type) {
	case *viewer.Movie:
		rt.Movie = v
	case *viewer.RatesView:
		rt.Rates = v
	default:
		_ = rt.Loop.Call(ctx, v.Close)
		return fmt.Errorf("%w: %s", ErrUnsupportedView, viewType)
	}
	rt.logger.Info().Str(log.FieldViewType, viewType).Msg("view opened")
	return nil
}

// Close releases the views, stops the loop and closes the cache and the
// tracer provider. It is idempotent.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.closeOnce.Do(func() {
		var errs []error
		if rt.Loop != nil {
			if rt.Movie != nil {
				if err := rt.Loop.Call(ctx, rt.Movie.Close); err != nil && !errors.Is(err, host.ErrStopped) {
					errs = append(errs, fmt.Errorf("close movie: %w", err))
				}
			}
			rt.cancelLoop()
			select {
			case <-rt.loopDone:
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("host loop: %w", ctx.Err()))
			}
		}
		if rt.cache != nil {
			if err := rt.cache.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close cache: %w", err))
			}
		}
		if rt.telemetry != nil {
			if err := rt.telemetry.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
			}
		}
		rt.closeErr = errors.Join(errs...)
	})
	return rt.closeErr
}

// OpenStore builds the byte store for the configured backend, behind the
// chunk cache when one is enabled. The returned URI names the recording.
func OpenStore(cfg config.AppConfig, c cache.Cache) (zarr.Store, string, error) {
	var (
		store zarr.Store
		uri   string
	)
	switch cfg.Store.Kind {
	case "http":
		hs, err := zarr.NewHTTPStore(cfg.Store.URL, cfg.HTTPOptions())
		if err != nil {
			return nil, "", err
		}
		store, uri = hs, strings.TrimRight(cfg.Store.URL, "/")
	case "dir", "":
		if cfg.Store.Path == "" {
			return nil, "", health.ErrStoreNotConfigured
		}
		store, uri = zarr.NewDirStore(cfg.Store.Path), "file://"+cfg.Store.Path
	default:
		return nil, "", fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
	if cfg.Store.Group != "" {
		uri = uri + "/" + strings.Trim(cfg.Store.Group, "/")
	}
	if cfg.Cache.Kind != "" && cfg.Cache.Kind != "none" {
		store = &cachedStore{CachedStore: zarr.NewCachedStore(store, c, uri+"|", cfg.Cache.TTL), inner: store}
	}
	return store, uri, nil
}

// cachedStore remembers the wrapped store so health checks can reach the
// HTTP backend behind the cache.
type cachedStore struct {
	*zarr.CachedStore
	inner zarr.Store
}

func unwrapHTTP(s zarr.Store) (*zarr.HTTPStore, bool) {
	if cs, ok := s.(*cachedStore); ok {
		s = cs.inner
	}
	hs, ok := s.(*zarr.HTTPStore)
	return hs, ok
}

// viewTypeOf prefers the group's own view_type attribute.
func viewTypeOf(g arraystore.Group, fallback string) string {
	if vt, ok := g.Attrs()[recording.AttrViewType].(string); ok && vt != "" {
		return vt
	}
	return fallback
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return ServiceName
}

func joinKey(group, key string) string {
	if g := strings.Trim(group, "/"); g != "" {
		return path.Join(g, key)
	}
	return key
}
