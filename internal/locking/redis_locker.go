package locking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadflow/internal/workflow"
)

var ErrLockAcquire = errors.New("failed to acquire lead lock")

const (
	defaultLockTTL      = 10 * time.Second
	defaultPollInterval = 25 * time.Millisecond
)

// снимаем блокировку только если она всё ещё наша
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker is a LeadLocker shared between service replicas.
// Lock polls SET NX PX until it wins or ctx is done.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

var _ workflow.LeadLocker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, poll: defaultPollInterval}
}

func (l *RedisLocker) key(leadID int64) string {
	return l.prefix + "lock:lead:" + strconv.FormatInt(leadID, 10)
}

func (l *RedisLocker) Lock(ctx context.Context, leadID int64) (workflow.UnlockFunc, error) {
	key := l.key(leadID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return unlockScript.Run(ctx, l.client, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
