// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/meamovie/internal/log"
)

// ErrStopped is returned by Call once the loop has exited.
var ErrStopped = errors.New("host loop stopped")

// LoopOptions configures a Loop.
type LoopOptions struct {
	// FrameInterval is the paint cadence (default 1/60 s).
	FrameInterval time.Duration
}

type frameRequest struct {
	fn        func(time.Time)
	cancelled atomic.Bool
}

// Loop is the production Scheduler: one goroutine drains posted tasks, runs
// frame callbacks on every paint tick, and runs timer callbacks.
type Loop struct {
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	tasks   []func()
	frames  []*frameRequest
	closed  bool
	notify  chan struct{}
	stopped chan struct{}
	timers  sync.WaitGroup
}

var (
	_ Scheduler = (*Loop)(nil)
	_ Caller    = (*Loop)(nil)
)

// NewLoop creates a loop. Call Run to start it.
func NewLoop(opts LoopOptions) *Loop {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 60
	}
	return &Loop{
		interval: opts.FrameInterval,
		logger:   log.WithComponent("host"),
		notify:   make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// Now implements Clock.
func (l *Loop) Now() time.Time { return time.Now() }

// Run processes tasks until ctx is done. Timer goroutines have exited when
// Run returns.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-l.notify:
			l.drain()
		case now := <-ticker.C:
			l.drain()
			l.paint(now)
		}
	}
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.closed = true
	l.tasks = nil
	l.frames = nil
	l.mu.Unlock()
	close(l.stopped)
	l.timers.Wait()
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			l.run(fn)
		}
	}
}

func (l *Loop) paint(now time.Time) {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()
	for _, fr := range frames {
		if fr.cancelled.Load() {
			continue
		}
		l.run(func() { fr.fn(now) })
	}
}

// run isolates a panicking task so the loop keeps serving the view.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str(log.FieldEvent, "host.task_panic").
				Interface("panic", r).
				Msg("loop task panicked")
		}
	}()
	fn()
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it. It must not be called from the
// loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		// the task may have completed just before shutdown
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// RequestFrame implements FrameScheduler.
func (l *Loop) RequestFrame(fn func(now time.Time)) Cancel {
	fr := &frameRequest{fn: fn}
	l.mu.Lock()
	if !l.closed {
		l.frames = append(l.frames, fr)
	}
	l.mu.Unlock()
	return func() { fr.cancelled.Store(true) }
}

// Every implements TimerScheduler. The ticker goroutine only posts; fn runs
// on the loop.
func (l *Loop) Every(d time.Duration, fn func(now time.Time)) Cancel {
	var cancelled atomic.Bool
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelled.Store(true)
			close(stop)
		})
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return cancel
	}
	l.timers.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.timers.Done()
		tk := time.NewTicker(d)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-l.stopped:
				return
			case now := <-tk.C:
				l.Post(func() {
					if !cancelled.Load() {
						fn(now)
					}
				})
			}
		}
	}()
	return cancel
}
