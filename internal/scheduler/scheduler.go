package scheduler

import (
	"context"
	"sync"
	"time"

	"fupm-backend/internal/request/usecase"

	"go.uber.org/zap"
)

// CronScheduler runs the follow-up pipeline on a fixed interval inside the process.
type CronScheduler struct {
	syncUsecase usecase.SyncUsecase
	interval    time.Duration
	timeout     time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// NewCronScheduler creates a new scheduler. A run is cut off after timeout;
// a non-positive timeout defaults to the interval.
func NewCronScheduler(syncUsecase usecase.SyncUsecase, interval, timeout time.Duration, logger *zap.Logger) *CronScheduler {
	if timeout <= 0 {
		timeout = interval
	}
	return &CronScheduler{
		syncUsecase: syncUsecase,
		interval:    interval,
		timeout:     timeout,
		logger:      logger,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *CronScheduler) Start() {
	s.logger.Info("Starting follow-up scheduler", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				s.logger.Info("Follow-up scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for an in-flight run.
func (s *CronScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.done
}

func (s *CronScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Stop cancels a run in progress
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := s.syncUsecase.RunCron(ctx)
	if err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled run completed",
		zap.Int("synced", result.Synced),
		zap.Int("auto_completed", result.AutoCompleted),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
}
