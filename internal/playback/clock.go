// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback maps wall-clock time to recording time.
//
// A Clock holds the playback state; a Driver advances it once per paint.
// Neither is safe for concurrent use: both belong to the host loop.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ManuGH/meamovie/internal/fsm"
	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/metrics"
)

// ErrInvalidSpeed is returned for a non-positive or non-finite speed.
var ErrInvalidSpeed = errors.New("playback: speed must be positive")

// State is the playback state.
type State string

const (
	Stopped State = "stopped"
	Playing State = "playing"
)

type event string

const (
	evPlay  event = "play"
	evPause event = "pause"
	evEnd   event = "end"
)

var transitions = []fsm.Transition[State, event]{
	{From: Stopped, Event: evPlay, To: Playing},
	{From: Playing, Event: evPause, To: Stopped},
	{From: Playing, Event: evEnd, To: Stopped},
}

// Clock converts elapsed wall-clock time to data time at a chosen speed.
// Every state change re-anchors so the mapping stays continuous.
type Clock struct {
	host    host.Clock
	machine *fsm.Machine[State, event]

	start, end float64
	speed      float64

	anchorWall time.Time
	anchorData float64
	current    float64

	listeners []func(State)
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithSpeed sets the initial speed. Invalid values are ignored.
func WithSpeed(s float64) ClockOption {
	return func(c *Clock) {
		if validSpeed(s) {
			c.speed = s
		}
	}
}

// NewClock returns a stopped clock positioned at start.
func NewClock(hc host.Clock, start, end float64, opts ...ClockOption) *Clock {
	if end < start {
		end = start
	}
	c := &Clock{
		host:    hc,
		machine: fsm.MustNew(Stopped, transitions),
		start:   start,
		end:     end,
		speed:   1,
		current: start,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine.OnTransition(func(_, to State, _ event) {
		metrics.SetPlaybackState(string(to))
		for _, fn := range c.listeners {
			fn(to)
		}
	})
	metrics.SetPlaybackState(string(Stopped))
	return c
}

func validSpeed(s float64) bool {
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}

// OnState registers fn for every state change.
func (c *Clock) OnState(fn func(State)) {
	c.listeners = append(c.listeners, fn)
}

// State returns the current state.
func (c *Clock) State() State { return c.machine.State() }

// Playing reports whether the clock is running.
func (c *Clock) Playing() bool { return c.State() == Playing }

// Speed returns the playback speed multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// Time returns the last published data time.
func (c *Clock) Time() float64 { return c.current }

// Bounds returns the playable range.
func (c *Clock) Bounds() (start, end float64) { return c.start, c.end }

// Play starts playback from the current position, or from the start if the
// position is at the end. It is a no-op while playing.
func (c *Clock) Play() {
	if c.Playing() {
		return
	}
	if c.current >= c.end {
		c.current = c.start
	}
	c.anchorWall = c.host.Now()
	c.anchorData = c.current
	c.fire(evPlay)
}

// Pause stops playback and keeps the position exactly. It is a no-op while
// stopped.
func (c *Clock) Pause() {
	if !c.Playing() {
		return
	}
	c.anchorWall = time.Time{}
	c.fire(evPause)
}

// Seek moves to t clamped to the playable range. While playing the clock
// re-anchors at t.
func (c *Clock) Seek(t float64) float64 {
	if math.IsNaN(t) {
		t = c.start
	}
	t = math.Max(c.start, math.Min(c.end, t))
	c.current = t
	if c.Playing() {
		c.anchorWall = c.host.Now()
		c.anchorData = t
	}
	return t
}

// SetSpeed changes the speed. While playing, the position at the moment of
// the change is computed with the old speed and becomes the new anchor.
func (c *Clock) SetSpeed(s float64) error {
	if !validSpeed(s) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, s)
	}
	if c.Playing() {
		now := c.host.Now()
		c.current = math.Min(c.end, c.position(now))
		c.anchorWall = now
		c.anchorData = c.current
	}
	c.speed = s
	return nil
}

// Advance publishes the position for the current wall time. Reaching the end
// clamps to it and stops playback.
func (c *Clock) Advance() (t float64, playing bool) {
	if !c.Playing() {
		return c.current, false
	}
	next := c.position(c.host.Now())
	if next >= c.end {
		c.current = c.end
		c.anchorWall = time.Time{}
		c.fire(evEnd)
		return c.current, false
	}
	c.current = next
	return next, true
}

func (c *Clock) position(now time.Time) float64 {
	return c.anchorData + now.Sub(c.anchorWall).Seconds()*c.speed
}

func (c *Clock) fire(ev event) {
	// only reached for edges present in the table
	_, _ = c.machine.Fire(context.Background(), ev)
}
