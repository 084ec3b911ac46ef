package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseLockScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
  return redis.call('del', KEYS[1])
else
  return 0
end
`)

// RedisLocker is a single-holder lease used to keep one sweep running across
// instances. A lease expires on its own if the holder dies.
type RedisLocker struct {
	client *redis.Client
	owner  string
}

// NewRedisLocker creates a locker that identifies itself as owner
func NewRedisLocker(client *redis.Client, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

// TryLock acquires key for ttl. It returns false when another owner holds it.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, l.owner, ttl).Result()
}

// Unlock releases key only if this owner still holds it
func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	return releaseLockScript.Run(ctx, l.client, []string{key}, l.owner).Err()
}
