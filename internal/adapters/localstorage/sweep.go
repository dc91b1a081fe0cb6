package localstorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"vidgrabber/internal/logging"
)

const sweepLockName = ".sweep.lock"

// SweepResult contains the outcome of a stale scratch sweep.
type SweepResult struct {
	Removed  []string
	Kept     int
	Errors   []SweepError
	Skipped  bool // another process holds the sweep lock
	Duration time.Duration
}

// SweepError pairs a path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes scratch files older than maxAge. They are leftovers of runs
// that never reached their cleanup, e.g. after a crash. Only one process
// sweeps a directory at a time.
func (s *Space) Sweep(ctx context.Context, maxAge time.Duration) (SweepResult, error) {
	start := time.Now()
	result := SweepResult{}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create scratch directory %s: %w", s.baseDir, err)
	}

	lock := flock.New(filepath.Join(s.baseDir, sweepLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !locked {
		result.Skipped = true
		s.logger.Debug("scratch sweep already running elsewhere", logging.Event("scratch_sweep_skipped"))
		return result, nil
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release sweep lock", logging.Error(err))
		}
	}()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return result, fmt.Errorf("read scratch directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.IsDir() || entry.Name() == sweepLockName {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			result.Kept++
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			s.logger.Warn("failed to remove stale scratch file",
				logging.String("path", path),
				logging.Error(err),
				logging.Event("scratch_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check scratch dir permissions"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		s.logger.Info("removed stale scratch file",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
			logging.Event("scratch_sweep"),
		)
	}

	result.Duration = time.Since(start)
	return result, nil
}
