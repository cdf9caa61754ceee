package notify

import (
	"context"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/logger"
	"github.com/minlano/ssg-price-tracker/services/store"
)

// Notifier delivers fired price alerts to users
type Notifier interface {
	// Send delivers one alert event
	Send(event store.AlertEvent) error

	// Close releases the notifier's resources
	Close() error
}

// Select picks a notifier by capability: the Redis stream notifier when an
// address is configured and reachable, the log notifier otherwise.
func Select(ctx context.Context, cfg *config.Config) Notifier {
	log := logger.ForNotifier()

	if cfg.RedisAddr != "" {
		if n, err := NewRedisNotifier(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.AlertStream, cfg.AlertStreamCount, cfg.AlertStreamMaxLength); err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Str("stream", cfg.AlertStream).
				Msg("Using Redis stream notifier")
			return n
		} else {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable for notifications")
		}
	}

	log.Info().Msg("Using log notifier")
	return NewLogNotifier()
}
