package watcher

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// WatchCoordinator re-runs the extraction pass whenever the file watcher
// reports changed inputs. Passes never overlap: the watcher is paused while a
// pass runs and changes seen meanwhile trigger exactly one follow-up pass.
type WatchCoordinator struct {
	files  FileWatcher
	run    PassFunc
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]bool
	signal  chan struct{}
}

// NewWatchCoordinator creates a new watch coordinator.
func NewWatchCoordinator(files FileWatcher, run PassFunc, logger *zap.Logger) *WatchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchCoordinator{
		files:   files,
		run:     run,
		logger:  logger,
		pending: make(map[string]bool),
		signal:  make(chan struct{}, 1),
	}
}

// Start begins routing file changes to passes.
// Blocks until context is cancelled, then stops the file watcher.
func (c *WatchCoordinator) Start(ctx context.Context) error {
	if err := c.files.Start(ctx, c.handleFileChange); err != nil {
		c.cleanup()
		return err
	}
	defer c.cleanup()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.signal:
			changed := c.takePending()
			if len(changed) == 0 {
				continue
			}
			c.runPass(ctx, changed)
		}
	}
}

// handleFileChange is the watcher callback. It never blocks, so it is safe
// to call from Resume on the coordinator goroutine.
func (c *WatchCoordinator) handleFileChange(files []string) {
	c.mu.Lock()
	for _, f := range files {
		c.pending[f] = true
	}
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *WatchCoordinator) takePending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := make([]string, 0, len(c.pending))
	for f := range c.pending {
		changed = append(changed, f)
	}
	c.pending = make(map[string]bool)
	sort.Strings(changed)
	return changed
}

func (c *WatchCoordinator) runPass(ctx context.Context, changed []string) {
	c.logger.Info("inputs changed, re-running pass", zap.Int("changed", len(changed)))

	// Accumulate events but don't start another pass until this one is done
	c.files.Pause()
	defer c.files.Resume()

	if err := c.run(ctx, changed); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("pass failed, previous output kept", zap.Error(err))
	}
}

func (c *WatchCoordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		c.logger.Warn("file watcher stop failed", zap.Error(err))
	}
}
