// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"time"

	"github.com/ManuGH/meamovie/internal/host"
)

// Driver advances a Clock on every paint while playing.
type Driver struct {
	clock *Clock
	sched host.FrameScheduler

	gen     uint64
	pending host.Cancel
	closed  bool

	onTime []func(float64)
}

// NewDriver binds c to the scheduler's paint callbacks.
func NewDriver(c *Clock, sched host.FrameScheduler) *Driver {
	d := &Driver{clock: c, sched: sched}
	c.OnState(func(s State) {
		if s != Playing {
			d.cancelPending()
		}
	})
	return d
}

// Clock returns the driven clock.
func (d *Driver) Clock() *Clock { return d.clock }

// OnTime registers fn for every published data time.
func (d *Driver) OnTime(fn func(t float64)) {
	d.onTime = append(d.onTime, fn)
}

// OnState registers fn for every state change.
func (d *Driver) OnState(fn func(State)) {
	d.clock.OnState(fn)
}

// Play starts playback and schedules the first paint.
func (d *Driver) Play() {
	if d.closed || d.clock.Playing() {
		return
	}
	d.clock.Play()
	d.publish(d.clock.Time())
	d.schedule()
}

// Pause stops playback and drops the pending paint callback.
func (d *Driver) Pause() {
	d.clock.Pause()
}

// Seek moves the clock and publishes the new position.
func (d *Driver) Seek(t float64) {
	if d.closed {
		return
	}
	d.publish(d.clock.Seek(t))
}

// SetSpeed changes the clock speed.
func (d *Driver) SetSpeed(s float64) error {
	return d.clock.SetSpeed(s)
}

// Close stops playback and releases the paint callback. The driver is inert
// afterwards.
func (d *Driver) Close() {
	if d.closed {
		return
	}
	d.clock.Pause()
	d.cancelPending()
	d.closed = true
}

// Pending reports whether a paint callback is scheduled.
func (d *Driver) Pending() bool { return d.pending != nil }

func (d *Driver) schedule() {
	d.gen++
	gen := d.gen
	d.pending = d.sched.RequestFrame(func(time.Time) {
		if d.closed || gen != d.gen {
			return
		}
		d.pending = nil
		d.tick()
	})
}

func (d *Driver) tick() {
	t, playing := d.clock.Advance()
	d.publish(t)
	if playing && !d.closed {
		d.schedule()
	}
}

func (d *Driver) cancelPending() {
	d.gen++
	if d.pending != nil {
		d.pending()
		d.pending = nil
	}
}

func (d *Driver) publish(t float64) {
	for _, fn := range d.onTime {
		fn(t)
	}
}
