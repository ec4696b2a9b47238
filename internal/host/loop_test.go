// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package host

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startLoop(t *testing.T, interval time.Duration) (*Loop, func()) {
	t.Helper()
	l := NewLoop(LoopOptions{FrameInterval: interval})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	return l, func() {
		cancel()
		<-done
	}
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l, stop := startLoop(t, 5*time.Millisecond)
	defer stop()

	var order []int
	for i := 0; i < 10; i++ {
		require.True(t, l.Post(func() { order = append(order, i) }))
	}
	require.NoError(t, l.Call(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestLoopRequestFrameRunsOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l, stop := startLoop(t, time.Millisecond)
	defer stop()

	var calls atomic.Int32
	fired := make(chan struct{}, 4)
	require.NoError(t, l.Call(context.Background(), func() {
		l.RequestFrame(func(time.Time) {
			calls.Add(1)
			fired <- struct{}{}
		})
	}))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("frame callback never ran")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoopCancelledFrameDoesNotRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l, stop := startLoop(t, 5*time.Millisecond)
	defer stop()

	var ran atomic.Bool
	require.NoError(t, l.Call(context.Background(), func() {
		cancel := l.RequestFrame(func(time.Time) { ran.Store(true) })
		cancel()
		cancel()
	}))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestLoopEveryAndCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l, stop := startLoop(t, 50*time.Millisecond)
	defer stop()

	var ticks atomic.Int32
	reached := make(chan struct{})
	var cancel Cancel
	require.NoError(t, l.Call(context.Background(), func() {
		cancel = l.Every(2*time.Millisecond, func(time.Time) {
			if ticks.Add(1) == 3 {
				close(reached)
			}
		})
	}))

	select {
	case <-reached:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never reached three ticks")
	}
	require.NoError(t, l.Call(context.Background(), cancel))
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Call(context.Background(), func() {}))
	assert.Equal(t, after, ticks.Load())
}

func TestLoopStopReleasesTimers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l, stop := startLoop(t, 5*time.Millisecond)

	require.NoError(t, l.Call(context.Background(), func() {
		l.Every(time.Millisecond, func(time.Time) {})
		l.Every(time.Hour, func(time.Time) {})
	}))
	stop()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrStopped)
	// scheduling after stop is inert
	l.Every(time.Millisecond, func(time.Time) {})()
	l.RequestFrame(func(time.Time) {})()
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l, stop := startLoop(t, 5*time.Millisecond)
	defer stop()

	l.Post(func() { panic("boom") })
	var ok atomic.Bool
	require.NoError(t, l.Call(context.Background(), func() { ok.Store(true) }))
	assert.True(t, ok.Load())
}
