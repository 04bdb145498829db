package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy — кабинет уже синхронизирует другой процесс.
var ErrBusy = errors.New("lock: sync already running")

// Locker — распределённая блокировка прогона по кабинету.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Redis — блокировка на redislock. Ключ живёт ttl; прогон дольше ttl
// продлевает её через Refresh.
type Redis struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: redislock.New(rdb), prefix: prefix, ttl: ttl, log: log}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(r.ttl / 2)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				err := l.Refresh(context.Background(), r.ttl, nil)
				if errors.Is(err, redislock.ErrNotObtained) {
					// ключ истёк или занят другим: продлевать больше нечего
					r.log.Error("sync lock lost", "key", l.Key())
					return
				}
				if err != nil {
					r.log.Warn("sync lock refresh failed", "key", l.Key(), "err", err)
				}
			}
		}
	}()

	return func(ctx context.Context) error {
		close(stop)
		<-done
		if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

// Noop — без блокировки (redis не настроен). Конкурентные прогоны по одному
// кабинету тогда небезопасны: дубли уберёт следующий прогон.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
