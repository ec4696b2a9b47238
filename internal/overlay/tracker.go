// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package overlay tracks which channels spiked recently and how strongly each
// should be highlighted.
//
// While playing, a channel is highlighted from the moment its spike is first
// observed and fades linearly to zero over the persistence window. While
// stopped only the spikes of the exact current frame are shown, without decay.
package overlay

import (
	"sort"
	"time"

	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/metrics"
)

// Config tunes the tracker.
type Config struct {
	Persistence time.Duration
	Refresh     time.Duration
	PeakOpacity float64
}

// DefaultConfig returns a 500ms window refreshed every 50ms at 0.9 opacity.
func DefaultConfig() Config {
	return Config{
		Persistence: 500 * time.Millisecond,
		Refresh:     50 * time.Millisecond,
		PeakOpacity: 0.9,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Persistence <= 0 {
		c.Persistence = def.Persistence
	}
	if c.Refresh <= 0 {
		c.Refresh = def.Refresh
	}
	if c.PeakOpacity <= 0 || c.PeakOpacity > 1 {
		c.PeakOpacity = def.PeakOpacity
	}
	return c
}

// Tracker is owned by the host loop and is not safe for concurrent use.
type Tracker struct {
	cfg   Config
	sched host.TimerScheduler

	playing bool
	tracked map[int]time.Time
	exact   []int

	sub      host.Cancel
	onChange []func()
	closed   bool
}

// New returns an empty, stopped tracker.
func New(sched host.TimerScheduler, cfg Config) *Tracker {
	return &Tracker{
		cfg:     cfg.normalized(),
		sched:   sched,
		tracked: make(map[int]time.Time),
	}
}

// Config returns the active configuration.
func (t *Tracker) Config() Config { return t.cfg }

// SetConfig replaces the configuration. A running refresh subscription is
// restarted at the new cadence.
func (t *Tracker) SetConfig(cfg Config) {
	cfg = cfg.normalized()
	restart := t.sub != nil && cfg.Refresh != t.cfg.Refresh
	t.cfg = cfg
	if restart {
		t.release()
		t.acquire()
	}
	t.Refresh()
}

// OnChange registers fn to run whenever the highlighted set may have changed.
func (t *Tracker) OnChange(fn func()) {
	t.onChange = append(t.onChange, fn)
}

// Observe records the spikes of the frame just displayed.
func (t *Tracker) Observe(channels []int, playing bool) {
	if t.closed {
		return
	}
	t.playing = playing
	if !playing {
		t.clearTracked()
		t.exact = append(t.exact[:0], channels...)
		metrics.SetOverlayActive(len(t.exact))
		t.notify()
		return
	}
	t.exact = t.exact[:0]
	now := t.sched.Now()
	for _, ch := range channels {
		if _, ok := t.tracked[ch]; !ok {
			t.tracked[ch] = now
		}
	}
	t.Refresh()
}

// Refresh evicts entries whose age reached the window and returns the
// channels still active, sorted.
func (t *Tracker) Refresh() []int {
	if !t.playing {
		return sortedCopy(t.exact)
	}
	now := t.sched.Now()
	for ch, seen := range t.tracked {
		if now.Sub(seen) >= t.cfg.Persistence {
			delete(t.tracked, ch)
		}
	}
	if len(t.tracked) == 0 {
		t.release()
	} else {
		t.acquire()
	}
	metrics.SetOverlayActive(len(t.tracked))

	active := make([]int, 0, len(t.tracked))
	for ch := range t.tracked {
		active = append(active, ch)
	}
	sort.Ints(active)
	return active
}

// Highlights returns the opacity of every highlighted channel.
func (t *Tracker) Highlights() map[int]float64 {
	if !t.playing {
		out := make(map[int]float64, len(t.exact))
		for _, ch := range t.exact {
			out[ch] = t.cfg.PeakOpacity
		}
		return out
	}
	now := t.sched.Now()
	window := t.cfg.Persistence.Seconds()
	out := make(map[int]float64, len(t.tracked))
	for ch, seen := range t.tracked {
		op := t.cfg.PeakOpacity * (1 - now.Sub(seen).Seconds()/window)
		if op > 0 {
			out[ch] = op
		}
	}
	return out
}

// SetPlaying switches modes. Leaving playback drops every tracked entry.
func (t *Tracker) SetPlaying(playing bool) {
	if t.closed || t.playing == playing {
		return
	}
	t.playing = playing
	if !playing {
		t.clearTracked()
		metrics.SetOverlayActive(len(t.exact))
		t.notify()
	}
}

// Playing reports the current mode.
func (t *Tracker) Playing() bool { return t.playing }

// Subscribed reports whether the refresh timer is held.
func (t *Tracker) Subscribed() bool { return t.sub != nil }

// Close releases the refresh timer and empties the tracker.
func (t *Tracker) Close() {
	if t.closed {
		return
	}
	t.clearTracked()
	t.exact = nil
	t.closed = true
	metrics.SetOverlayActive(0)
}

func (t *Tracker) clearTracked() {
	clear(t.tracked)
	t.release()
}

func (t *Tracker) acquire() {
	if t.sub != nil || t.closed {
		return
	}
	t.sub = t.sched.Every(t.cfg.Refresh, func(time.Time) {
		if t.closed || t.sub == nil {
			return
		}
		t.Refresh()
		t.notify()
	})
}

func (t *Tracker) release() {
	if t.sub != nil {
		t.sub()
		t.sub = nil
	}
}

func (t *Tracker) notify() {
	for _, fn := range t.onChange {
		fn()
	}
}

func sortedCopy(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
