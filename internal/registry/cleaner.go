package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner periodically prunes the registry: an expire sweep, then an orphan
// sweep. It can be started and stopped independently of the registry itself;
// stopping waits for an in-flight sweep so every tick is a complete pass or
// not started.
type Cleaner struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	// budgetBytes and targetFree drive emergency cleanup under storage
	// pressure. usedBytes is injectable for tests.
	budgetBytes int64
	targetFree  float64
	usedBytes   func() int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	swept  func(removed int) // optional observer, e.g. metrics
}

// NewCleaner creates a Cleaner for the given registry. budgetBytes is the
// storage byte budget; targetFree is the fraction of the budget that
// emergency cleanup frees up to.
func NewCleaner(r *Registry, interval time.Duration, budgetBytes int64, targetFree float64, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		registry:    r,
		interval:    interval,
		logger:      logger,
		budgetBytes: budgetBytes,
		targetFree:  targetFree,
		usedBytes:   r.UsedBytes,
	}
}

// OnSweep registers a callback invoked with the removed count after each
// sweep. Must be set before Start.
func (c *Cleaner) OnSweep(fn func(removed int)) {
	c.swept = fn
}

// Start launches the background sweep loop. Calling Start on a running
// cleaner is a no-op.
func (c *Cleaner) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.loop(ctx)
	c.logger.Info("cleanup scheduler started", "interval", c.interval)
}

// Stop halts the sweep loop and waits for any in-flight sweep to finish.
// Stopping a stopped cleaner is a no-op.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("cleanup scheduler stopped")
}

func (c *Cleaner) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep runs one complete pass: remove expired artifacts, then reconcile the
// two inconsistency classes reported by VerifyIntegrity. Individual deletion
// failures are logged and skipped. Returns the number of items removed.
func (c *Cleaner) Sweep() int {
	removed := c.registry.RemoveExpired()

	report, err := c.registry.VerifyIntegrity()
	if err != nil {
		c.logger.Warn("orphan sweep: integrity check failed", "error", err)
	}
	for _, id := range report.MissingFiles {
		c.registry.DropEntry(id)
		removed++
	}
	for _, path := range report.Orphans {
		if err := c.registry.RemoveOrphan(path); err != nil {
			c.logger.Warn("orphan sweep: failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Info("cleanup sweep finished", "removed", removed)
	}
	if c.swept != nil {
		c.swept(removed)
	}
	return removed
}

// UnderPressure reports whether used storage exceeds the configured budget.
func (c *Cleaner) UnderPressure() bool {
	return c.budgetBytes > 0 && c.usedBytes() > c.budgetBytes
}

// EmergencyCleanup removes artifacts oldest-first, irrespective of remaining
// TTL, until the free fraction of the byte budget reaches targetFreeRatio or
// no artifacts remain. A non-positive ratio uses the configured default.
// Returns the number of artifacts removed.
func (c *Cleaner) EmergencyCleanup(targetFreeRatio float64) int {
	if targetFreeRatio <= 0 {
		targetFreeRatio = c.targetFree
	}
	if c.budgetBytes <= 0 {
		return 0
	}

	removed := 0
	for _, a := range c.registry.OldestFirst() {
		free := 1 - float64(c.usedBytes())/float64(c.budgetBytes)
		if free >= targetFreeRatio {
			break
		}
		if err := c.registry.Remove(a.ID); err != nil {
			c.logger.Warn("emergency cleanup: failed to remove artifact", "id", a.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Warn("emergency cleanup freed storage", "removed", removed)
	}
	return removed
}
