// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"

	"github.com/ManuGH/meamovie/internal/config"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/viewer"
)

// Apply pushes the reloadable parts of next onto the live view: log level,
// render constants, display settings, overlay constants and speed. Only
// sections that differ from the previously applied config are touched, so
// settings changed over the API survive unrelated reloads. Store, cache and
// API changes need a restart.
func (rt *Runtime) Apply(ctx context.Context, next config.AppConfig) error {
	prev := rt.cfg

	if next.Log.Level != prev.Log.Level {
		log.Configure(log.Config{Level: next.Log.Level, Service: ServiceName, Version: next.Version})
		rt.logger = log.WithComponent("daemon")
		rt.cfg.Log = next.Log
	}
	if rt.Movie == nil {
		rt.cfg = next
		return nil
	}

	var renderer *render.Renderer
	if next.RenderConfig() != prev.RenderConfig() {
		renderer = render.New(next.RenderConfig())
	}
	settingsChanged := next.Render.Colormap != prev.Render.Colormap || next.Render.Contrast != prev.Render.Contrast
	overlayChanged := next.OverlayConfig() != prev.OverlayConfig()
	speedChanged := next.Playback.Speed != prev.Playback.Speed
	if renderer == nil && !settingsChanged && !overlayChanged && !speedChanged {
		rt.cfg = next
		return nil
	}

	var errs []error
	err := rt.Loop.Call(ctx, func() {
		m := rt.Movie
		if renderer != nil {
			m.SetRenderer(renderer)
		}
		if settingsChanged {
			errs = append(errs, m.SetSettings(viewer.Settings{Colormap: next.Render.Colormap, Contrast: next.Render.Contrast}))
		}
		if overlayChanged {
			m.SetOverlayConfig(next.OverlayConfig())
		}
		if speedChanged {
			errs = append(errs, m.SetSpeed(next.Playback.Speed))
		}
	})
	if err != nil {
		return err
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	// committed only once the view took it, so a failed apply is retried
	// by the next reload
	rt.cfg = next
	rt.logger.Info().
		Bool("renderer", renderer != nil).
		Bool("settings", settingsChanged).
		Bool("overlay", overlayChanged).
		Bool("speed", speedChanged).
		Str(log.FieldEvent, "config.applied").
		Msg("applied configuration to live view")
	return nil
}
