package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Layered fronts a primary store (redis) with an in-process fallback. Any
// primary error degrades to the fallback and is logged, never propagated:
// absence of cache is a valid state for every caller.
type Layered struct {
	primary  Store
	fallback Store
	log      zerolog.Logger
}

// NewLayered wires a primary store with its fallback.
func NewLayered(primary, fallback Store, log zerolog.Logger) *Layered {
	return &Layered{
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "cache").Logger(),
	}
}

func (l *Layered) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok, err := l.primary.Get(ctx, key)
	if err == nil {
		return val, ok, nil
	}
	l.log.Error().Err(err).Str("key", key).Msg("primary cache get failed, using fallback")
	val, ok, _ = l.fallback.Get(ctx, key)
	return val, ok, nil
}

func (l *Layered) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := l.primary.Set(ctx, key, value, ttl); err != nil {
		l.log.Error().Err(err).Str("key", key).Msg("primary cache set failed, using fallback")
		return l.fallback.Set(ctx, key, value, ttl)
	}
	// Mirror to the fallback so a later redis outage still has warm data.
	_ = l.fallback.Set(ctx, key, value, ttl)
	return nil
}

func (l *Layered) Delete(ctx context.Context, key string) error {
	_ = l.fallback.Delete(ctx, key)
	if err := l.primary.Delete(ctx, key); err != nil {
		l.log.Error().Err(err).Str("key", key).Msg("primary cache delete failed")
	}
	return nil
}

func (l *Layered) Incr(ctx context.Context, key string) (int64, error) {
	n, err := l.primary.Incr(ctx, key)
	if err == nil {
		return n, nil
	}
	l.log.Error().Err(err).Str("key", key).Msg("primary cache incr failed, using fallback")
	return l.fallback.Incr(ctx, key)
}

func (l *Layered) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := l.primary.Expire(ctx, key, ttl); err != nil {
		l.log.Error().Err(err).Str("key", key).Msg("primary cache expire failed, using fallback")
		return l.fallback.Expire(ctx, key, ttl)
	}
	_ = l.fallback.Expire(ctx, key, ttl)
	return nil
}

func (l *Layered) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := l.primary.ScanKeys(ctx, pattern)
	if err == nil {
		return keys, nil
	}
	l.log.Error().Err(err).Str("pattern", pattern).Msg("primary cache scan failed, using fallback")
	return l.fallback.ScanKeys(ctx, pattern)
}
