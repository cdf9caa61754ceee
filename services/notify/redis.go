package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	apperrors "github.com/minlano/ssg-price-tracker/pkg/errors"
	"github.com/minlano/ssg-price-tracker/services/store"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier delivers alerts to Redis streams for downstream consumers.
// Events are JSON-encoded then base64-wrapped and spread across
// streamCount streams under the configured prefix.
type RedisNotifier struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

var _ Notifier = (*RedisNotifier)(nil)

// alertPayload is the wire shape published for one alert
type alertPayload struct {
	WatchID   int64  `json:"watch_id"`
	Kind      string `json:"kind"`
	OldPrice  int64  `json:"old_price"`
	NewPrice  int64  `json:"new_price"`
	UserRef   string `json:"user_ref"`
	ItemName  string `json:"item_name"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

// NewRedisNotifier connects to Redis and verifies the connection
func NewRedisNotifier(ctx context.Context, addr string, db int, streamPrefix string, streamCount, streamMaxLength int) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if streamCount < 1 {
		streamCount = 1
	}
	return &RedisNotifier{
		client:          client,
		ctx:             ctx,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}, nil
}

// Send publishes one alert to a randomly chosen stream shard
func (n *RedisNotifier) Send(event store.AlertEvent) error {
	payload := alertPayload{
		WatchID:   event.WatchID,
		Kind:      string(event.Kind),
		OldPrice:  event.OldPrice,
		NewPrice:  event.NewPrice,
		UserRef:   event.UserRef,
		ItemName:  event.ItemName,
		URL:       event.URL,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewNotify(n.streamPrefix, "failed to encode alert", err)
	}

	stream := n.streamPrefix + ":" + strconv.Itoa(rand.Intn(n.streamCount))
	err = n.client.XAdd(n.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"alert": base64.StdEncoding.EncodeToString(data),
		},
	}).Err()
	if err != nil {
		return apperrors.NewNotify(stream, "failed to publish alert", err)
	}
	return nil
}

// TrimStreams trims every alert stream to the configured maximum length
func (n *RedisNotifier) TrimStreams() error {
	streams, err := n.client.Keys(n.ctx, n.streamPrefix+":*").Result()
	if err != nil {
		return apperrors.NewNotify(n.streamPrefix, "failed to list streams", err)
	}
	for _, stream := range streams {
		if err := n.client.XTrimMaxLen(n.ctx, stream, int64(n.streamMaxLength)).Err(); err != nil {
			return apperrors.NewNotify(stream, "failed to trim stream", err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
