// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hosttest provides a manually driven host.Scheduler. The test
// goroutine plays the role of the loop: callbacks only run inside Flush,
// Advance, Paint and Await.
package hosttest

import (
	"sync"
	"time"

	"github.com/ManuGH/meamovie/internal/host"
)

type frame struct {
	fn        func(time.Time)
	cancelled bool
}

type timer struct {
	every     time.Duration
	next      time.Time
	fn        func(time.Time)
	cancelled bool
}

// Fake is a deterministic scheduler with a virtual clock.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []func()
	frames []*frame
	timers []*timer
	closed bool
	notify chan struct{}
}

var _ host.Scheduler = (*Fake)(nil)

// NewFake returns a fake whose clock starts at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, notify: make(chan struct{}, 1)}
}

// Now implements host.Clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Post implements host.Scheduler. Safe from any goroutine.
func (f *Fake) Post(fn func()) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	f.tasks = append(f.tasks, fn)
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return true
}

// Close makes further Posts fail, like a stopped loop.
func (f *Fake) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// RequestFrame implements host.FrameScheduler.
func (f *Fake) RequestFrame(fn func(now time.Time)) host.Cancel {
	fr := &frame{fn: fn}
	f.mu.Lock()
	f.frames = append(f.frames, fr)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		fr.cancelled = true
		f.mu.Unlock()
	}
}

// Every implements host.TimerScheduler. The first tick is due one interval
// from now.
func (f *Fake) Every(d time.Duration, fn func(now time.Time)) host.Cancel {
	f.mu.Lock()
	tm := &timer{every: d, next: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, tm)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		tm.cancelled = true
		f.mu.Unlock()
	}
}

// Flush runs posted tasks until none remain.
func (f *Fake) Flush() {
	for {
		f.mu.Lock()
		tasks := f.tasks
		f.tasks = nil
		f.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// Advance moves the clock forward by d, firing due timers in time order.
// Posted tasks are flushed between timer callbacks.
func (f *Fake) Advance(d time.Duration) {
	f.Flush()
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due *timer
		for _, tm := range f.timers {
			if tm.cancelled || tm.next.After(target) {
				continue
			}
			if due == nil || tm.next.Before(due.next) {
				due = tm
			}
		}
		if due == nil {
			f.now = target
			f.pruneLocked()
			f.mu.Unlock()
			break
		}
		f.now = due.next
		due.next = due.next.Add(due.every)
		now, fn := f.now, due.fn
		f.mu.Unlock()

		fn(now)
		f.Flush()
	}
	f.Flush()
}

// Paint advances the clock by d and then runs the frame callbacks that were
// pending, like one display refresh.
func (f *Fake) Paint(d time.Duration) {
	f.Advance(d)
	f.mu.Lock()
	frames := f.frames
	f.frames = nil
	now := f.now
	f.mu.Unlock()
	for _, fr := range frames {
		f.mu.Lock()
		skip := fr.cancelled
		f.mu.Unlock()
		if !skip {
			fr.fn(now)
		}
	}
	f.Flush()
}

// Await flushes tasks until cond holds or timeout elapses in real time. It is
// used when worker goroutines post results back.
func (f *Fake) Await(timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		f.Flush()
		if cond() {
			return true
		}
		select {
		case <-f.notify:
		case <-deadline.C:
			f.Flush()
			return cond()
		}
	}
}

// PendingFrames counts frame callbacks that would run on the next Paint.
func (f *Fake) PendingFrames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fr := range f.frames {
		if !fr.cancelled {
			n++
		}
	}
	return n
}

// ActiveTimers counts interval timers that have not been cancelled.
func (f *Fake) ActiveTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tm := range f.timers {
		if !tm.cancelled {
			n++
		}
	}
	return n
}

func (f *Fake) pruneLocked() {
	live := f.timers[:0]
	for _, tm := range f.timers {
		if !tm.cancelled {
			live = append(live, tm)
		}
	}
	f.timers = live
}
