package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"chainstack-provider/internal/config"
	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/domain/entity"
	domainRepo "chainstack-provider/internal/domain/repository"
)

// Compile-time check
var _ domainRepo.CacheRepository = (*CacheRepository)(nil)

// Cache keys
const (
	headKeyPrefix  = "head_v1_"
	probeKeyPrefix = "probe_v1_"
)

// CacheRepository implements domainRepo.CacheRepository using the go-cache in-memory library.
type CacheRepository struct {
	cache  *cache.Cache
	cfg    config.CacheConfig
	logger *zap.Logger
}

// NewCacheRepository creates a new in-memory cache repository instance.
func NewCacheRepository(cfg config.CacheConfig, logger *zap.Logger) *CacheRepository {
	c := cache.New(cfg.DefaultExpiration, cfg.CleanupInterval)
	logger.Info(
		"Initialized go-cache for memory storage",
		zap.Duration("defaultExpiration", cfg.DefaultExpiration),
		zap.Duration("cleanupInterval", cfg.CleanupInterval),
	)

	return &CacheRepository{
		cache:  c,
		cfg:    cfg,
		logger: logger.Named("MemoryCacheStorage"),
	}
}

// GetHead retrieves the cached head for network, returning found status.
func (r *CacheRepository) GetHead(_ context.Context, network string) (entity.Head, bool, error) {
	return get[entity.Head](r, headKeyPrefix+network)
}

// SetHead caches head under its network name.
func (r *CacheRepository) SetHead(_ context.Context, head entity.Head, ttl time.Duration) error {
	r.set(headKeyPrefix+head.Network.Name, head, r.ttl(ttl, r.cfg.HeadTTL))
	return nil
}

// GetProbeResults retrieves cached probe results for network, returning found status.
func (r *CacheRepository) GetProbeResults(_ context.Context, network string) ([]entity.ProbeResult, bool, error) {
	return get[[]entity.ProbeResult](r, probeKeyPrefix+network)
}

// SetProbeResults caches probe results for network.
func (r *CacheRepository) SetProbeResults(
	_ context.Context,
	network string,
	results []entity.ProbeResult,
	ttl time.Duration,
) error {
	r.set(probeKeyPrefix+network, results, r.ttl(ttl, r.cfg.ProbeTTL))
	return nil
}

func get[T any](r *CacheRepository, key string) (T, bool, error) {
	var zero T
	x, found := r.cache.Get(key)
	if !found {
		r.logger.Debug("Memory cache miss", zap.String("key", key))
		return zero, false, nil
	}
	v, ok := x.(T)
	if !ok {
		r.logger.Warn("Memory cache data type mismatch for key",
			zap.String("key", key), zap.String("type", fmt.Sprintf("%T", x)),
		)
		return zero, false, fmt.Errorf("%w: unexpected type %T for key %s", domain.ErrCacheFailure, x, key)
	}
	r.logger.Debug("Memory cache hit", zap.String("key", key))
	return v, true, nil
}

func (r *CacheRepository) set(key string, v any, ttl time.Duration) {
	r.cache.Set(key, v, ttl)
	r.logger.Debug("Memory cache set", zap.String("key", key), zap.Duration("ttl", ttl))
}

// ttl picks the explicit ttl, then the per-kind fallback, then the cache default.
func (r *CacheRepository) ttl(explicit, fallback time.Duration) time.Duration {
	switch {
	case explicit > 0:
		return explicit
	case fallback > 0:
		return fallback
	default:
		return cache.DefaultExpiration
	}
}
