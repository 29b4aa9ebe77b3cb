package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

// releaseScript deletes the lock only when it still holds the caller's token.
var releaseScript = redislib.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only while the caller still holds the lock.
var extendScript = redislib.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type seriesLocker struct {
	client  redislib.UniversalClient
	prefix  string
	ttl     time.Duration
	refresh time.Duration
	retry   time.Duration
}

// NewSeriesLocker creates a Redis-backed SeriesLocker. The ttl bounds how long
// a crashed holder can keep a series locked; a live holder keeps extending it
// every ttl/3 until release.
func NewSeriesLocker(client redislib.UniversalClient, ttl time.Duration) repository.SeriesLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &seriesLocker{
		client:  client,
		prefix:  "lock:series:",
		ttl:     ttl,
		refresh: max(ttl/3, time.Millisecond),
		retry:   50 * time.Millisecond,
	}
}

func (l *seriesLocker) Lock(ctx context.Context, seriesID string) (func(context.Context) error, error) {
	key := l.key(seriesID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire series lock: %w", err)
		}
		if ok {
			return l.hold(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.WrapError(domain.ErrCodeConflict, domain.ErrSeriesBusy.Message, ctx.Err())
		case <-ticker.C:
		}
	}
}

// hold keeps the lock alive in the background and returns its release func.
func (l *seriesLocker) hold(key, token string) func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), l.refresh)
				held, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
				cancel()
				if err == nil && held == 0 {
					// someone else owns the key now
					return
				}
			}
		}
	}()

	var once sync.Once
	return func(releaseCtx context.Context) error {
		once.Do(func() { close(stop) })
		<-done
		return releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
}

func (l *seriesLocker) key(id string) string {
	return fmt.Sprintf("%s%s", l.prefix, id)
}
