package repository

import (
	"context"
	"sync/atomic"
	"time"

	"fleetdesk/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverCache serves from the primary (Redis) cache until it errors, then
// degrades to the in-memory fallback. It probes the primary again after a
// minute so a recovered Redis is picked back up.
type FailoverCache struct {
	primary   domain.Cache
	fallback  domain.Cache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed primary probe
}

func NewFailoverCache(primary, fallback domain.Cache, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.isDown.Load() {
		val, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			return val, ok, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		val, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return val, ok, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, key, value, ttl)
}

func (r *FailoverCache) Invalidate(ctx context.Context, key string) error {
	if !r.isDown.Load() {
		err := r.primary.Invalidate(ctx, key)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Invalidate(ctx, key)
}

func (r *FailoverCache) InvalidatePattern(ctx context.Context, pattern string) error {
	if !r.isDown.Load() {
		err := r.primary.InvalidatePattern(ctx, pattern)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.InvalidatePattern(ctx, pattern)
}
