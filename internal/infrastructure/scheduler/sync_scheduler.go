package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redakta/backend/internal/domain/source"
	"go.uber.org/zap"
)

// Syncer runs a full sync across all active affiliate sources
type Syncer interface {
	SyncAll(ctx context.Context) ([]source.SyncResult, error)
}

// SyncConfig holds sync scheduler configuration
type SyncConfig struct {
	Enabled  bool
	Interval time.Duration
}

// DefaultSyncConfig returns default sync configuration
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Enabled:  true,
		Interval: 6 * time.Hour,
	}
}

// SyncScheduler periodically refreshes offers from every active affiliate
// source. One run never overlaps the next: a tick that fires while a sync is
// still in flight is skipped.
type SyncScheduler struct {
	config SyncConfig
	syncer Syncer
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  bool
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncConfig, syncer Syncer, logger *zap.Logger) *SyncScheduler {
	return &SyncScheduler{
		config: config,
		syncer: syncer,
		logger: logger,
	}
}

// Start starts the sync loop. Calling Start on a running scheduler is a no-op.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sync
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SyncScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *SyncScheduler) syncOnce(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Warn("Skipping sync tick, previous run still in flight")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	start := time.Now()
	results, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Error("Scheduled sync failed", zap.Error(err))
		return
	}

	var added, updated, removed, errs int
	for _, r := range results {
		added += r.Added
		updated += r.Updated
		removed += r.Removed
		errs += len(r.Errors)
	}

	s.logger.Info("Scheduled sync completed",
		zap.Int("sources", len(results)),
		zap.Int("added", added),
		zap.Int("updated", updated),
		zap.Int("removed", removed),
		zap.Int("record_errors", errs),
		zap.Duration("elapsed", time.Since(start)),
	)
}
