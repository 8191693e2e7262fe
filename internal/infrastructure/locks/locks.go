// Package locks provides the per-device mutual exclusion used to ensure
// at most one upgrade runs against a device at a time.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeviceLocker serializes upgrade execution per device and is the sole
// arbiter of who runs: the winner of TryLock proceeds, everyone else is
// told who holds the lock. TryLock is non-blocking; a denied caller
// decides from the holder identity whether it is a rival operation (and
// aborts) or a duplicate delivery of the holder itself (and backs off).
type DeviceLocker interface {
	TryLock(ctx context.Context, deviceID uint, operationSID string) (ok bool, holder string, release func(), err error)
}

// MemoryLocker is a process-local locker backed by a mutex-guarded map
// of device id to holder operation. Sufficient when all workers run in
// one process; deployments with several worker processes must use the
// redis locker instead.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[uint]string
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{holders: make(map[uint]string)}
}

func (l *MemoryLocker) TryLock(_ context.Context, deviceID uint, operationSID string) (bool, string, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, held := l.holders[deviceID]; held {
		return false, holder, nil, nil
	}
	l.holders[deviceID] = operationSID
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.holders, deviceID)
	}
	return true, operationSID, release, nil
}

// RedisLocker coordinates across processes with SET NX and a TTL safety
// net so a crashed worker cannot hold a device hostage. The lock value
// is the holder operation's SID; release is ownership-checked so an
// expired-and-reclaimed lock is never deleted by the old holder.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// releaseScript deletes the key only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// NewRedisLocker creates a cross-process locker. A zero ttl defaults to
// one hour, comfortably above the longest plausible upgrade.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, deviceID uint, operationSID string) (bool, string, func(), error) {
	key := fmt.Sprintf("firmup:device-lock:%d", deviceID)
	ok, err := l.client.SetNX(ctx, key, operationSID, l.ttl).Result()
	if err != nil {
		return false, "", nil, fmt.Errorf("failed to acquire device lock: %w", err)
	}
	if !ok {
		holder, err := l.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// released between SETNX and GET; report contention anyway
			return false, "", nil, nil
		}
		if err != nil {
			return false, "", nil, fmt.Errorf("failed to read device lock holder: %w", err)
		}
		return false, holder, nil, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, l.client, []string{key}, operationSID)
	}
	return true, operationSID, release, nil
}
