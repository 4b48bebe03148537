package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"carpool/internal/service"
)

// HealthCheck pings the Redis client and returns nil if healthy.
func HealthCheck(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx).Err()
}

// Ensure concrete types implement interfaces.
var _ service.CarpoolCache = (*CacheStore)(nil)
