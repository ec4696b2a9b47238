// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ManuGH/meamovie/internal/config"
	"github.com/ManuGH/meamovie/internal/log"
)

// ErrStoreNotConfigured is returned when serving without a recording source.
var ErrStoreNotConfigured = errors.New("no recording store configured")

// PerformStartupChecks validates the environment before the server starts:
// the recording source exists and any on-disk cache directory is writable.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	switch cfg.Store.Kind {
	case "dir":
		if cfg.Store.Path == "" {
			return ErrStoreNotConfigured
		}
		if err := checkZarrGroup(logger, cfg.Store.Path, cfg.Store.Group); err != nil {
			return fmt.Errorf("store check failed: %w", err)
		}
	case "http":
		if cfg.Store.URL == "" {
			return ErrStoreNotConfigured
		}
		logger.Info().Str("url", cfg.Store.URL).Msg("recording served over HTTP; reachability is checked by /readyz")
	}

	if cfg.Cache.Kind == "badger" {
		if err := os.MkdirAll(cfg.Cache.Badger.Path, 0o750); err != nil {
			return fmt.Errorf("badger cache dir: %w", err)
		}
		if err := checkWritableDir(logger, cfg.Cache.Badger.Path); err != nil {
			return fmt.Errorf("badger cache dir check failed: %w", err)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkZarrGroup(logger zerolog.Logger, root, group string) error {
	meta := filepath.Join(root, filepath.FromSlash(group), ".zgroup")
	info, err := os.Stat(meta)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no zarr group at %s", filepath.Dir(meta))
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", meta)
	}
	logger.Info().Str("path", filepath.Dir(meta)).Msg("zarr group found")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("directory is writable")
	return nil
}
