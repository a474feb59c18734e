package service

import (
	"context"
	"time"

	"chatsync/internal/constants"

	"github.com/sirupsen/logrus"
)

// SnapshotCleaner is the slice of the cache the scheduler prunes.
type SnapshotCleaner interface {
	CleanupOldChannels(ctx context.Context, retentionDays int) error
}

// Scheduler periodically prunes cached timeline snapshots for channels that
// have not been opened within the retention window.
type Scheduler struct {
	cleaner       SnapshotCleaner
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(cleaner SnapshotCleaner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.CacheCleanupSchedulerIntervalHours
	}
	return &Scheduler{
		cleaner:       cleaner,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting snapshot cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retentionDays", s.retentionDays).Info("Running scheduled snapshot cleanup")

	if err := s.cleaner.CleanupOldChannels(ctx, s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup stale snapshots")
	} else {
		s.logger.Info("Successfully completed snapshot cleanup")
	}
}
