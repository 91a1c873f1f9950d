package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Rotator rotates the selection cache: it clears every cached slice and
// eagerly repopulates the baseline per-category slices.
type Rotator interface {
	Rotate(ctx context.Context) error
}

// RotationConfig holds rotation scheduler configuration
type RotationConfig struct {
	Enabled  bool
	Interval time.Duration
}

// DefaultRotationConfig returns default rotation configuration
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		Enabled:  true,
		Interval: time.Hour,
	}
}

// RotationScheduler periodically rotates displayed offers so the same slice
// is not served forever. Timers are always stopped explicitly; Stop drains
// the running rotation before returning.
type RotationScheduler struct {
	config  RotationConfig
	rotator Rotator
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRotationScheduler creates a new rotation scheduler
func NewRotationScheduler(config RotationConfig, rotator Rotator, logger *zap.Logger) *RotationScheduler {
	return &RotationScheduler{
		config:  config,
		rotator: rotator,
		logger:  logger,
	}
}

// Start starts the rotation loop. Calling Start on a running scheduler is a no-op.
func (s *RotationScheduler) Start(ctx context.Context) error {
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

	s.logger.Info("Rotation scheduler started",
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight rotation
func (s *RotationScheduler) Stop(ctx context.Context) error {
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
		s.logger.Info("Rotation scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Rotation scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerNow runs one rotation immediately, outside the ticker cadence
func (s *RotationScheduler) TriggerNow(ctx context.Context) error {
	return s.rotate(ctx)
}

func (s *RotationScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.rotate(ctx); err != nil {
				s.logger.Error("Offer rotation failed", zap.Error(err))
			}
		}
	}
}

func (s *RotationScheduler) rotate(ctx context.Context) error {
	start := time.Now()
	if err := s.rotator.Rotate(ctx); err != nil {
		return err
	}

	s.logger.Info("Offer rotation completed",
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
