package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRunLock guards sync runs across processes with SET NX + TTL.
type RedisRunLock struct {
	client *redis.Client
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client}
}

func (l *RedisRunLock) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ok, err := l.client.SetNX(ctx, lockKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

func (l *RedisRunLock) Unlock(ctx context.Context, key string) error {
	if l.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := l.client.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

func lockKey(key string) string {
	return "sync_lock:" + key
}

// LocalRunLock is the in-process fallback used when redis is not
// configured. It protects against overlapping runs within one process only.
type LocalRunLock struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalRunLock() *LocalRunLock {
	return &LocalRunLock{held: make(map[string]time.Time)}
}

func (l *LocalRunLock) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, ok := l.held[key]; ok && time.Now().Before(expires) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *LocalRunLock) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, key)
	return nil
}
