package live

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"truck_tracker/internal/config"
	"truck_tracker/internal/models"
)

// SnapshotCache mirrors each truck's latest snapshot into redis so
// external dashboards can read live state without touching Postgres.
// The mirror is best-effort: failures are logged and never surface to
// the ingestion path. A nil cache is a no-op.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache connects to redis when an address is configured and
// returns nil otherwise.
func NewSnapshotCache(ctx context.Context, cfg *config.Settings) *SnapshotCache {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unreachable, snapshot mirror disabled.")
		return nil
	}
	return &SnapshotCache{
		client: client,
		ttl:    time.Duration(cfg.SnapshotTTLSecond) * time.Second,
	}
}

// Update writes the truck's snapshot hash with a TTL.
func (c *SnapshotCache) Update(ctx context.Context, truck *models.Truck) {
	if c == nil || !truck.HasFix() {
		return
	}

	key := fmt.Sprintf("truck:%d:state", truck.ID)
	state := map[string]interface{}{
		"lat":       *truck.LastLat,
		"lng":       *truck.LastLng,
		"speed":     truck.LastSpeed,
		"heading":   truck.LastHeading,
		"is_active": truck.IsActive,
	}
	if truck.LastUpdate != nil {
		state["updated_at"] = truck.LastUpdate.Unix()
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, state)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithField("truck_id", truck.ID).Warn("Snapshot mirror write failed.")
	}
}

// Close releases the redis connection.
func (c *SnapshotCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
