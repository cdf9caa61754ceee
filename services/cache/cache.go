package cache

import (
	"time"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/logger"
)

// CacheService represents a generic advisory cache. A miss is not an
// error: Get reports it through the ok flag so backend failures stay
// distinguishable from absent keys.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, bool, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// Select picks a cache backend by capability: Redis when an address is
// configured and reachable, then memcache, then the in-process fallback.
// Selection never fails.
func Select(cfg *config.Config) CacheService {
	log := logger.ForCache()

	if cfg.RedisAddr != "" {
		if svc, err := NewRedisService(cfg.RedisAddr, cfg.RedisDB); err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis cache")
			return svc
		} else {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable")
		}
	}

	if cfg.MemcacheAddr != "" {
		svc := NewMemcacheService(cfg.MemcacheAddr)
		if err := svc.Ping(); err == nil {
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Using memcache cache")
			return svc
		} else {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable")
		}
	}

	log.Info().Int("maxEntries", cfg.CacheMaxEntries).Msg("Using in-process memory cache")
	return NewMemoryService(cfg.CacheMaxEntries)
}
