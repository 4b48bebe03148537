package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
	token  string
}

// NewLockStore creates a new LockStore. Each store owns the locks it acquires.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{
		client: client,
		token:  uuid.New().String(),
	}
}

// AcquireLock attempts to acquire the named lock.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockPrefix+name, s.token, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseLock releases the named lock if this store still holds it.
func (s *LockStore) ReleaseLock(ctx context.Context, name string) error {
	return releaseScript.Run(ctx, s.client, []string{lockPrefix + name}, s.token).Err()
}
