package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/domain"
)

func testCache(t *testing.T) (*OpportunityCache, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(256)
	t.Cleanup(store.Stop)
	return NewOpportunityCache(store, config.Default().Discovery, zerolog.Nop()), store
}

func testResponse(userID string, opps int) *Response {
	resp := &Response{
		Success:             true,
		ScanID:              "scan-1",
		UserID:              userID,
		Opportunities:       []domain.Opportunity{},
		StrategyPerformance: map[string]StrategyScanStats{},
		LastUpdated:         time.Now().UTC(),
	}
	for i := 0; i < opps; i++ {
		resp.Opportunities = append(resp.Opportunities, domain.Opportunity{
			StrategyID:         "spot_momentum_strategy",
			Symbol:             "BTC",
			ProfitPotentialUSD: 40,
			ConfidenceScore:    80,
			DiscoveredAt:       time.Now().UTC(),
		})
	}
	resp.TotalOpportunities = len(resp.Opportunities)
	return resp
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := testCache(t)
	profile := domain.BuildProfile("u1", []string{"spot_momentum_strategy"}, 0)

	c.Write(context.Background(), profile, testResponse("u1", 3))
	got, ok := c.Read(context.Background(), profile)
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalOpportunities)
	assert.Equal(t, "u1", got.UserID)
}

func TestFingerprintMismatchInvalidates(t *testing.T) {
	c, store := testCache(t)
	// Same user, tier, and strategy count, but a different strategy set.
	before := domain.BuildProfile("u1", []string{"spot_momentum_strategy"}, 0)
	after := domain.BuildProfile("u1", []string{"swing_trading"}, 0)
	require.Equal(t, opportunityKey(before), opportunityKey(after))

	c.Write(context.Background(), before, testResponse("u1", 2))
	_, ok := c.Read(context.Background(), after)
	assert.False(t, ok)

	// The stale entry must be gone entirely.
	_, present, err := store.Get(context.Background(), opportunityKey(before))
	require.NoError(t, err)
	assert.False(t, present)
}

func TestStaleEntryMisses(t *testing.T) {
	c, store := testCache(t)
	profile := domain.BuildProfile("u1", []string{"spot_momentum_strategy"}, 0)

	env := cachedEnvelope{
		Payload: testResponse("u1", 2),
		CacheMetadata: cacheMetadata{
			CachedAt:            time.Now().Add(-time.Hour),
			StrategyFingerprint: profile.StrategyFingerprint,
			TotalOpportunities:  2,
		},
	}
	require.NoError(t, cache.SetJSON(context.Background(), store, opportunityKey(profile), env, time.Hour))

	_, ok := c.Read(context.Background(), profile)
	assert.False(t, ok)
}

func TestEmptyResultsAgeOutFaster(t *testing.T) {
	c, store := testCache(t)
	profile := domain.BuildProfile("u1", []string{"spot_momentum_strategy"}, 0)

	// Five minutes old: fine for a populated scan, stale for an empty one.
	age := time.Now().Add(-5 * time.Minute)
	populated := cachedEnvelope{
		Payload:       testResponse("u1", 2),
		CacheMetadata: cacheMetadata{CachedAt: age, StrategyFingerprint: profile.StrategyFingerprint, TotalOpportunities: 2},
	}
	require.NoError(t, cache.SetJSON(context.Background(), store, opportunityKey(profile), populated, time.Hour))
	_, ok := c.Read(context.Background(), profile)
	assert.True(t, ok)

	empty := cachedEnvelope{
		Payload:       testResponse("u1", 0),
		CacheMetadata: cacheMetadata{CachedAt: age, StrategyFingerprint: profile.StrategyFingerprint, TotalOpportunities: 0},
	}
	require.NoError(t, cache.SetJSON(context.Background(), store, opportunityKey(profile), empty, time.Hour))
	_, ok = c.Read(context.Background(), profile)
	assert.False(t, ok)
}

func TestInvalidateDropsAllUserEntries(t *testing.T) {
	c, store := testCache(t)
	p1 := domain.BuildProfile("u1", []string{"spot_momentum_strategy"}, 0)
	p2 := domain.BuildProfile("u1", []string{"spot_momentum_strategy", "swing_trading"}, 25)
	other := domain.BuildProfile("u2", []string{"spot_momentum_strategy"}, 0)

	c.Write(context.Background(), p1, testResponse("u1", 1))
	c.Write(context.Background(), p2, testResponse("u1", 1))
	c.Write(context.Background(), other, testResponse("u2", 1))

	c.Invalidate(context.Background(), "u1")

	keys, err := store.ScanKeys(context.Background(), UserPattern("u1"))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, ok := c.Read(context.Background(), other)
	assert.True(t, ok, "other users' entries survive")
}
