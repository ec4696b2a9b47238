// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FrameFetchDuration tracks the time to fetch one sample frame.
	FrameFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meamovie_frame_fetch_duration_seconds",
		Help:    "Time to fetch a single sample frame from the store",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"result"})

	// FramesApplied counts frames that became the displayed frame.
	FramesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meamovie_frames_applied_total",
		Help: "Frames applied to the view",
	})

	// FramesStale counts fetch results dropped because a newer request or a
	// recording switch superseded them.
	FramesStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meamovie_frames_stale_total",
		Help: "Frame fetch results discarded as stale",
	})

	// RenderDuration tracks rasterization time for one frame.
	RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meamovie_render_duration_seconds",
		Help:    "Time to rasterize one frame",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	// OverlayActiveChannels reports the size of the active spike overlay set.
	OverlayActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meamovie_overlay_active_channels",
		Help: "Channels currently highlighted by the spike overlay",
	})

	playbackState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meamovie_playback_state",
		Help: "Playback state (1 for the active state, 0 otherwise)",
	}, []string{"state"})
)

var playbackStates = []string{"stopped", "playing"}

// ObserveFrameFetch records a frame fetch.
func ObserveFrameFetch(err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	FrameFetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// IncFramesApplied counts an applied frame.
func IncFramesApplied() { FramesApplied.Inc() }

// IncFramesStale counts a discarded fetch result.
func IncFramesStale() { FramesStale.Inc() }

// ObserveRender records rasterization time.
func ObserveRender(d time.Duration) { RenderDuration.Observe(d.Seconds()) }

// SetOverlayActive records the current active overlay size.
func SetOverlayActive(n int) { OverlayActiveChannels.Set(float64(n)) }

// SetPlaybackState records the active playback state.
func SetPlaybackState(state string) {
	for _, s := range playbackStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		playbackState.WithLabelValues(s).Set(v)
	}
}
