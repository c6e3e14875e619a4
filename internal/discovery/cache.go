package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/domain"
)

// cacheMetadata wraps a cached response with the facts needed to judge it.
type cacheMetadata struct {
	CachedAt            time.Time `json:"cached_at"`
	StrategyFingerprint string    `json:"strategy_fingerprint"`
	ZeroTTLSeconds      int       `json:"zero_ttl_seconds"`
	TotalOpportunities  int       `json:"total_opportunities"`
}

type cachedEnvelope struct {
	Payload       *Response     `json:"payload"`
	CacheMetadata cacheMetadata `json:"cache_metadata"`
}

// OpportunityCache stores scan responses keyed by user, tier, and strategy
// count; a fingerprint mismatch on read invalidates the entry.
type OpportunityCache struct {
	store cache.Store
	cfg   config.DiscoveryConfig
	log   zerolog.Logger
}

// NewOpportunityCache wires the response cache.
func NewOpportunityCache(store cache.Store, cfg config.DiscoveryConfig, log zerolog.Logger) *OpportunityCache {
	return &OpportunityCache{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "opportunity_cache").Logger(),
	}
}

func opportunityKey(p *domain.UserOpportunityProfile) string {
	return fmt.Sprintf("user_opportunities:%s:%s:%d", p.UserID, p.UserTier, p.ActiveStrategyCount)
}

// UserPattern matches every cached scan for a user, for fallback lookups
// and invalidation.
func UserPattern(userID string) string {
	return "user_opportunities:" + userID + ":*"
}

// maxAge is result-size dependent: empty result sets go stale quickly.
func (c *OpportunityCache) maxAge(total int) time.Duration {
	if total == 0 {
		return c.cfg.OpportunityEmptyTTL
	}
	return 10 * time.Minute
}

// Read returns the cached response when its fingerprint matches the current
// profile and it has not aged out. A fingerprint mismatch deletes the entry.
func (c *OpportunityCache) Read(ctx context.Context, p *domain.UserOpportunityProfile) (*Response, bool) {
	key := opportunityKey(p)
	var env cachedEnvelope
	ok, err := cache.GetJSON(ctx, c.store, key, &env)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("opportunity cache read failed")
		return nil, false
	}
	if !ok || env.Payload == nil {
		return nil, false
	}

	if env.CacheMetadata.StrategyFingerprint != p.StrategyFingerprint {
		c.log.Debug().Str("key", key).Msg("fingerprint changed, invalidating cached scan")
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Error().Err(err).Str("key", key).Msg("cache invalidation failed")
		}
		return nil, false
	}
	if time.Since(env.CacheMetadata.CachedAt) > c.maxAge(env.CacheMetadata.TotalOpportunities) {
		return nil, false
	}

	// Older payloads may predate the profile fields; keep both present for
	// downstream consumers.
	if env.Payload.UserProfile.ActiveStrategies == nil {
		env.Payload.UserProfile.ActiveStrategies = []string{}
	}
	if env.Payload.UserProfile.ActiveStrategyCount == 0 {
		env.Payload.UserProfile.ActiveStrategyCount = len(env.Payload.UserProfile.ActiveStrategies)
	}
	return env.Payload, true
}

// Write persists a scan response. Non-empty results live 15 minutes, empty
// ones 2 minutes. Failures are logged, never surfaced.
func (c *OpportunityCache) Write(ctx context.Context, p *domain.UserOpportunityProfile, resp *Response) {
	ttl := c.cfg.OpportunityTTL
	if resp.TotalOpportunities == 0 {
		ttl = c.cfg.OpportunityEmptyTTL
	}
	env := cachedEnvelope{
		Payload: resp,
		CacheMetadata: cacheMetadata{
			CachedAt:            time.Now().UTC(),
			StrategyFingerprint: p.StrategyFingerprint,
			ZeroTTLSeconds:      int(c.cfg.OpportunityEmptyTTL.Seconds()),
			TotalOpportunities:  resp.TotalOpportunities,
		},
	}
	if err := cache.SetJSON(ctx, c.store, opportunityKey(p), env, ttl); err != nil {
		c.log.Error().Err(err).Str("user_id", p.UserID).Msg("opportunity cache write failed")
	}
}

// Invalidate drops every cached scan for the user, for portfolio or tier
// change events.
func (c *OpportunityCache) Invalidate(ctx context.Context, userID string) {
	keys, err := c.store.ScanKeys(ctx, UserPattern(userID))
	if err != nil {
		c.log.Error().Err(err).Str("user_id", userID).Msg("cache scan failed during invalidation")
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Error().Err(err).Str("key", key).Msg("cache delete failed")
		}
	}
}
