package service

import (
	"log/slog"
	"sync"

	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/core/ports"
	"vidgrabber/internal/logging"
)

// Cleanup is the deferred release of one pipeline run's scratch handles.
// Run releases everything scheduled so far and is a no-op after the first call.
type Cleanup struct {
	scratch ports.ScratchSpace
	logger  *slog.Logger

	mu      sync.Mutex
	handles []domain.ScratchHandle
	ran     bool
	once    sync.Once
}

func newCleanup(scratch ports.ScratchSpace, logger *slog.Logger) *Cleanup {
	return &Cleanup{scratch: scratch, logger: logger}
}

// Schedule adds handles to the release set. Handles scheduled after Run has
// already executed are released immediately.
func (c *Cleanup) Schedule(handles ...domain.ScratchHandle) {
	if c == nil || len(handles) == 0 {
		return
	}
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		c.scratch.Release(handles...)
		return
	}
	c.handles = append(c.handles, handles...)
	c.mu.Unlock()
}

// Scheduled reports how many handles are queued for release.
func (c *Cleanup) Scheduled() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Run releases every scheduled handle exactly once. Release failures are
// logged by the scratch space and never returned.
func (c *Cleanup) Run() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		c.mu.Lock()
		handles := append([]domain.ScratchHandle(nil), c.handles...)
		c.ran = true
		c.mu.Unlock()

		if len(handles) == 0 {
			return
		}
		c.scratch.Release(handles...)
		if c.logger != nil {
			c.logger.Debug("deferred cleanup ran",
				logging.Int("handles", len(handles)),
				logging.Event("cleanup_complete"),
			)
		}
	})
}
