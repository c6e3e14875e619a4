// Package cache provides the shared key-value store used for universe
// snapshots, opportunity sets, rate-limit counters, and price caching.
// Redis is the primary transport with an in-process fallback; cache failures
// never fail a pipeline.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the minimal cache surface the engine depends on. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// GetJSON reads key and unmarshals it into out. Missing keys and decode
// failures both report a miss; decode failures also surface the error.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and stores it under key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(raw), ttl)
}
