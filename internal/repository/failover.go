package repository

import (
	"context"
	"sync/atomic"
	"time"

	"housekeeper/internal/domain"
	"housekeeper/internal/logging"

	"github.com/rs/zerolog"
)

// FailoverRunLock prefers the redis lock and degrades to the in-process
// lock when redis misbehaves, retrying the primary after a cooldown. A
// degraded lock still prevents overlapping runs within this process.
type FailoverRunLock struct {
	primary   domain.RunLocker
	fallback  domain.RunLocker
	logger    zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverRunLock(primary, fallback domain.RunLocker, logger *zerolog.Logger) *FailoverRunLock {
	return &FailoverRunLock{
		primary:  primary,
		fallback: fallback,
		logger:   logging.Component(logger, "run_lock"),
	}
}

func (l *FailoverRunLock) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.usePrimary() {
		ok, err := l.primary.Lock(ctx, key, ttl)
		if err == nil {
			l.isDown.Store(false)
			return ok, nil
		}
		l.logger.Error().Err(err).Str("key", key).Msg("primary run lock failed, falling back to local lock")
		l.markDown()
	}
	return l.fallback.Lock(ctx, key, ttl)
}

func (l *FailoverRunLock) Unlock(ctx context.Context, key string) error {
	// Release on both sides; a lock taken before a failover may live in
	// either store.
	var primaryErr error
	if !l.isDown.Load() {
		primaryErr = l.primary.Unlock(ctx, key)
		if primaryErr != nil {
			l.logger.Error().Err(primaryErr).Str("key", key).Msg("primary run lock release failed")
			l.markDown()
		}
	}
	if err := l.fallback.Unlock(ctx, key); err != nil {
		return err
	}
	return primaryErr
}

func (l *FailoverRunLock) usePrimary() bool {
	if l.primary == nil {
		return false
	}
	if !l.isDown.Load() {
		return true
	}
	// Retry the primary after a minute of degraded operation.
	return time.Since(time.Unix(l.lastCheck.Load(), 0)) > time.Minute
}

func (l *FailoverRunLock) markDown() {
	l.isDown.Store(true)
	l.lastCheck.Store(time.Now().Unix())
}
