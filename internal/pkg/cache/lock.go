package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const syncLockPrefix = "sync_lock:"

// releaseLockScript deletes the lock only while the stored owner token still
// matches. A worker that outlived the lock TTL must not free the lock a newer
// attempt now holds.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireSyncLock takes the per-integration sync lock. On success it returns
// the owner token the holder must present to release the lock; ok is false
// when another sync for the same tenant integration currently holds it. The
// TTL bounds how long a crashed worker can keep an integration locked.
func AcquireSyncLock(tenantIntegrationID uint, ttl time.Duration) (token string, ok bool, err error) {
	key := fmt.Sprintf("%s%d", syncLockPrefix, tenantIntegrationID)
	token = uuid.NewString()
	ok, err = GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseSyncLock frees the per-integration sync lock if the caller still
// owns it. Releasing a lock that expired and was re-acquired is a no-op.
func ReleaseSyncLock(tenantIntegrationID uint, token string) error {
	key := fmt.Sprintf("%s%d", syncLockPrefix, tenantIntegrationID)
	return releaseLockScript.Run(ctx, GetClient(), []string{key}, token).Err()
}
