package background

import (
	"context"
	"log/slog"
	"time"
)

// RevocationPruner is the slice of the revocation registry the janitor needs.
type RevocationPruner interface {
	PruneExpired(ctx context.Context) (int, error)
}

// CleanupManager periodically prunes expired entries from the token
// revocation registry so the blacklist cannot grow without bound.
type CleanupManager struct {
	registry RevocationPruner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(registry RevocationPruner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		registry: registry,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := cm.registry.PruneExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to prune revocation registry", slog.Any("error", err))
		return
	}

	if removed > 0 {
		cm.logger.Info("revocation registry pruned", slog.Int("entries_removed", removed))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
