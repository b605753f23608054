package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

const (
	cacheOpTimeout = 250 * time.Millisecond
	cacheCooldown  = 30 * time.Second
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// CacheService fronts the preview plan cache. After a backend failure reads
// and writes are skipped for a cooldown; invalidation is always attempted so
// a committed day never serves a stale plan once the backend is back.
type CacheService struct {
	repo       CacheRepository
	metrics    cacheMetrics
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	now          func() time.Time
	trippedUntil atomic.Int64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics cacheMetrics, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		repo:       repo,
		metrics:    metrics,
		defaultTTL: defaultTTL,
		logger:     logger.With(zap.String("component", "plan_cache")),
		enabled:    enabled,
		now:        time.Now,
	}
}

// Enabled indicates whether caching is configured.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Degraded reports whether the backend is in its failure cooldown.
func (s *CacheService) Degraded() bool {
	return s.Enabled() && s.now().UnixNano() < s.trippedUntil.Load()
}

// Get loads key into dest and reports whether it was a hit. Backend errors
// are returned once and then suppressed until the cooldown passes.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() || s.Degraded() {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.trip("get", key, err)
		return false, err
	}
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() || s.Degraded() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil {
		s.trip("set", key, err)
	}
	return err
}

// Invalidate removes cached values matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("plan cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

func (s *CacheService) trip(op, key string, err error) {
	until := s.now().Add(cacheCooldown)
	s.trippedUntil.Store(until.UnixNano())
	s.logger.Warn("plan cache unavailable, bypassing",
		zap.String("op", op),
		zap.String("key", key),
		zap.Time("until", until),
		zap.Error(err),
	)
}

// planCacheKey names one cached preview: coverage:plan:<date>:<daytype>:<mode>.
func planCacheKey(date time.Time, dayType coverage.DayType, emergency bool) string {
	mode := "standard"
	if emergency {
		mode = "emergency"
	}
	return fmt.Sprintf("coverage:plan:%s:%s:%s", formatDate(date), dayType, mode)
}

// planCachePattern matches every cached preview for date.
func planCachePattern(date time.Time) string {
	return fmt.Sprintf("coverage:plan:%s:*", formatDate(date))
}
