// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHolderReload(t *testing.T) {
	path := writeConfig(t, "render:\n  contrast: 30\n")
	l := NewLoader(path, "")
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	updates := make(chan AppConfig, 1)
	h.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte("render:\n  contrast: 65\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, 65.0, h.Get().Render.Contrast)

	select {
	case got := <-updates:
		assert.Equal(t, 65.0, got.Render.Contrast)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolderReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, "render:\n  contrast: 30\n")
	l := NewLoader(path, "")
	initial, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(initial, l)

	require.NoError(t, os.WriteFile(path, []byte("render:\n  contrast: 300\n"), 0o600))
	err = h.Reload(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 30.0, h.Get().Render.Contrast)
}

func TestHolderFullListenerDoesNotBlock(t *testing.T) {
	path := writeConfig(t, "")
	l := NewLoader(path, "")
	h := NewHolder(Defaults(), l)
	full := make(chan AppConfig)
	h.Subscribe(full)

	done := make(chan error, 1)
	go func() { done <- h.Reload(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Reload blocked on an unready listener")
	}
}

func TestHolderWatcherDebouncesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := writeConfig(t, "overlay:\n  peakOpacity: 0.5\n")
	l := NewLoader(path, "")
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	h.SetDebounce(20 * time.Millisecond)
	updates := make(chan AppConfig, 8)
	h.Subscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.StartWatcher(ctx))

	// a burst of writes collapses into one reload of the final content
	for _, v := range []string{"0.6", "0.7", "0.8"} {
		require.NoError(t, os.WriteFile(path, []byte("overlay:\n  peakOpacity: "+v+"\n"), 0o600))
	}
	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0o600))

	require.Eventually(t, func() bool { return h.Get().Overlay.PeakOpacity == 0.8 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	h.Wait()
	assert.GreaterOrEqual(t, len(updates), 1)
}

func TestHolderWatcherDisabledWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Wait()
}
