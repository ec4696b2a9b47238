// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package host provides the single-goroutine event loop that owns view state:
// posted tasks, per-paint frame callbacks and interval timers all run on the
// loop goroutine, one at a time.
package host

import (
	"context"
	"time"
)

// Cancel releases a scheduled callback. It is idempotent; a callback whose
// Cancel has been called on the loop never runs afterwards.
type Cancel func()

// Clock reads the host's notion of now.
type Clock interface {
	Now() time.Time
}

// FrameScheduler runs a callback once, at the next paint.
type FrameScheduler interface {
	Clock
	RequestFrame(fn func(now time.Time)) Cancel
}

// TimerScheduler runs a callback periodically until cancelled.
type TimerScheduler interface {
	Clock
	Every(d time.Duration, fn func(now time.Time)) Cancel
}

// Scheduler is the full host surface a view needs.
type Scheduler interface {
	FrameScheduler
	TimerScheduler
	// Post queues fn to run on the loop. It never blocks and returns false
	// once the loop has stopped.
	Post(fn func()) bool
}

// Caller runs fn on the loop and waits for it to finish.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}
