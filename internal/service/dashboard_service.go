package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

type overviewRepository interface {
	Overview(ctx context.Context, date string) (*models.FleetOverview, error)
}

// DashboardService composes the fleet overview shown on the ops dashboard.
type DashboardService struct {
	repo     overviewRepository
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo overviewRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		cacheTTL: cacheTTL,
	}
}

// Overview returns fleet counters for today plus whether the payload came
// from cache. The result is cached briefly since every dashboard client
// polls it.
func (s *DashboardService) Overview(ctx context.Context) (*models.FleetOverview, bool, error) {
	date := s.now().Format("2006-01-02")
	key := "dashboard:overview:" + date

	var cached models.FleetOverview
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	overview, err := s.repo.Overview(ctx, date)
	if err != nil {
		return nil, false, wrapInternal(err, "failed to build fleet overview")
	}
	overview.GeneratedAt = s.now()

	if err := s.cache.Set(ctx, key, overview, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache fleet overview", zap.Error(err))
	}
	return overview, false, nil
}
