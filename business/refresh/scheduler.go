package refresh

import (
	"context"
	"time"

	"smartLink/domain"
	"smartLink/pkg/logger"
)

type RegionLister interface {
	ActiveRegions(ctx context.Context) ([]domain.Region, error)
}

type CacheCleaner interface {
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Scheduler drives recurring refresh batches and location cache cleanup.
// Every tick starts from scratch: nothing carries over between runs.
type Scheduler struct {
	service         *Service
	regions         RegionLister
	cleaner         CacheCleaner
	interval        time.Duration
	cleanupInterval time.Duration
	runTimeout      time.Duration
}

func NewScheduler(service *Service, regions RegionLister, cleaner CacheCleaner, interval, cleanupInterval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	return &Scheduler{
		service:         service,
		regions:         regions,
		cleaner:         cleaner,
		interval:        interval,
		cleanupInterval: cleanupInterval,
		runTimeout:      interval / 2,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("refresh scheduler started", "interval", s.interval.String(), "cleanup_interval", s.cleanupInterval.String())

	refresh := time.NewTicker(s.interval)
	defer refresh.Stop()
	cleanup := time.NewTicker(s.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("refresh scheduler stopped")
			return
		case <-refresh.C:
			s.RunOnce(ctx)
		case <-cleanup.C:
			s.Cleanup(ctx)
		}
	}
}

// RunOnce runs one batch per active region. A failing region does not stop
// the others.
func (s *Scheduler) RunOnce(ctx context.Context) []Report {
	regions, err := s.regions.ActiveRegions(ctx)
	if err != nil {
		logger.Error("scheduler failed to list regions", "error", err)
		return nil
	}

	reports := make([]Report, 0, len(regions))
	for _, region := range regions {
		if ctx.Err() != nil {
			break
		}
		rctx, cancel := context.WithTimeout(ctx, s.runTimeout)
		report, err := s.service.RunBatchRefresh(rctx, region.ID)
		cancel()
		if err != nil {
			logger.Error("scheduled refresh failed", "region", region.ID, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

func (s *Scheduler) Cleanup(ctx context.Context) {
	if s.cleaner == nil {
		return
	}
	removed, err := s.cleaner.CleanExpiredCache(ctx)
	if err != nil {
		logger.Error("location cache cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("location cache cleanup finished", "removed", removed)
	}
}
