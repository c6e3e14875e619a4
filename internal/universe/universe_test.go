package universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/domain"
)

func asset(sym, exchange string, price, volume float64) domain.Asset {
	return domain.Asset{
		Symbol:       sym,
		Exchange:     exchange,
		Quote:        "USDT",
		PriceUSD:     price,
		Volume24hUSD: volume,
		LastUpdated:  time.Now().UTC(),
	}
}

func TestClassifyPicksBestQuote(t *testing.T) {
	perExchange := []map[string]domain.Asset{
		{"BTC": asset("BTC", "kraken", 50000, 1_000_000)},
		{"BTC": asset("BTC", "binance", 50010, 5_000_000)},
	}
	priorities := map[string]int{"binance": 1, "kraken": 2}

	buckets := Classify(perExchange, priorities)
	var found []domain.Asset
	for _, b := range buckets {
		found = append(found, b...)
	}
	require.Len(t, found, 1)
	assert.Equal(t, "binance", found[0].Exchange, "higher volume wins")
}

func TestClassifyTieBreaksOnPriorityThenID(t *testing.T) {
	perExchange := []map[string]domain.Asset{
		{"BTC": asset("BTC", "kucoin", 50000, 1_000_000)},
		{"BTC": asset("BTC", "binance", 50000, 1_000_000)},
	}
	priorities := map[string]int{"binance": 1, "kucoin": 3}

	buckets := Classify(perExchange, priorities)
	got, ok := (&Universe{Tiers: buckets}).Lookup("BTC")
	require.True(t, ok)
	assert.Equal(t, "binance", got.Exchange, "equal volume breaks on priority")

	// Equal priority breaks lexicographically.
	perExchange = []map[string]domain.Asset{
		{"ETH": asset("ETH", "bbb", 3000, 100)},
		{"ETH": asset("ETH", "aaa", 3000, 100)},
	}
	buckets = Classify(perExchange, map[string]int{"aaa": 5, "bbb": 5})
	got, ok = (&Universe{Tiers: buckets}).Lookup("ETH")
	require.True(t, ok)
	assert.Equal(t, "aaa", got.Exchange)
}

func TestClassifyAssignsTiersAndSorts(t *testing.T) {
	perExchange := []map[string]domain.Asset{{
		"AAA": asset("AAA", "binance", 1, 1_500_000_000), // institutional
		"BBB": asset("BBB", "binance", 1, 15_000_000),    // professional
		"CCC": asset("CCC", "binance", 1, 50_000),        // emerging
		"DDD": asset("DDD", "binance", 1, 20_000_000),    // professional
	}}

	buckets := Classify(perExchange, nil)
	for _, tier := range domain.Tiers() {
		_, present := buckets[tier]
		assert.True(t, present, "bucket %s must exist even when empty", tier)
	}
	assert.Len(t, buckets[domain.TierInstitutional], 1)
	require.Len(t, buckets[domain.TierProfessional], 2)
	assert.Equal(t, "DDD", buckets[domain.TierProfessional][0].Symbol, "buckets ordered volume desc")
	assert.Len(t, buckets[domain.TierEmerging], 1)
}

func TestFilterMinTier(t *testing.T) {
	perExchange := []map[string]domain.Asset{{
		"AAA": asset("AAA", "binance", 1, 1_500_000_000),
		"BBB": asset("BBB", "binance", 1, 15_000_000),
		"CCC": asset("CCC", "binance", 1, 50_000),
	}}
	buckets := FilterMinTier(Classify(perExchange, nil), domain.TierProfessional)

	u := &Universe{Tiers: buckets}
	_, hasA := u.Lookup("AAA")
	_, hasB := u.Lookup("BBB")
	_, hasC := u.Lookup("CCC")
	assert.True(t, hasA)
	assert.True(t, hasB)
	assert.False(t, hasC, "emerging asset filtered below professional floor")
}

func TestUniverseTopByVolume(t *testing.T) {
	buckets := Classify([]map[string]domain.Asset{{
		"AAA": asset("AAA", "binance", 1, 300),
		"BBB": asset("BBB", "binance", 1, 100),
		"CCC": asset("CCC", "binance", 1, 200),
	}}, nil)
	u := &Universe{Tiers: buckets}

	top := u.TopByVolume(2)
	require.Len(t, top, 2)
	assert.Equal(t, "AAA", top[0].Symbol)
	assert.Equal(t, "CCC", top[1].Symbol)
}

// --- discovery caching ---

func seededDiscovery(t *testing.T, store cache.Store) *Discovery {
	t.Helper()
	cfg := config.Default().Discovery
	return NewDiscovery(nil, nil, store, cfg, zerolog.Nop())
}

func TestDiscoverServesFreshCache(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()
	d := seededDiscovery(t, mem)
	ctx := context.Background()

	cached := cachedUniverse{
		Universe: &Universe{
			Tiers:       map[domain.Tier][]domain.Asset{domain.TierRetail: {asset("BTC", "binance", 50000, 2_000_000)}},
			TotalAssets: 1,
			Exchanges:   []string{"binance"},
			MinTier:     domain.TierRetail,
			Timestamp:   time.Now().UTC(),
		},
		Timestamp: time.Now().UTC(),
	}
	key := universeKey(domain.TierRetail, []string{"binance"})
	require.NoError(t, cache.SetJSON(ctx, mem, key, cached, 10*time.Minute))

	// fetcher and registry are nil: a cache miss here would panic, so a
	// clean return proves the hit path.
	u, err := d.Discover(ctx, domain.TierRetail, []string{"binance"}, false)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 1, u.TotalAssets)
}

func TestUniverseKeyIsOrderInsensitive(t *testing.T) {
	a := universeKey(domain.TierRetail, []string{"kraken", "binance"})
	b := universeKey(domain.TierRetail, []string{"binance", "kraken"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, universeKey(domain.TierInstitutional, []string{"binance", "kraken"}))
}

// --- resolver ---

type fakeAccounts struct {
	exchanges []string
	symbols   []string
	err       error
}

func (f *fakeAccounts) ActiveExchanges(ctx context.Context, userID string) ([]string, error) {
	return f.exchanges, f.err
}

func (f *fakeAccounts) AllowedSymbols(ctx context.Context, userID string) ([]string, error) {
	return f.symbols, f.err
}

func testResolver(t *testing.T, accounts AccountReader, store cache.Store) *Resolver {
	t.Helper()
	local := cache.NewMemoryStore(64)
	t.Cleanup(local.Stop)
	cfg := config.Default().Discovery
	return NewResolver(accounts, nil, store, local, cfg, zerolog.Nop())
}

func TestUserExchangesRequestedWins(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()
	r := testResolver(t, &fakeAccounts{exchanges: []string{"okx"}}, mem)

	got := r.UserExchanges(context.Background(), "u1", []string{"kraken", "kraken", "bybit"}, nil)
	assert.Equal(t, []string{"kraken", "bybit"}, got, "requested list deduped and returned untouched")
}

func TestUserExchangesFromAccounts(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()
	r := testResolver(t, &fakeAccounts{exchanges: []string{"kraken", "okx"}}, mem)

	got := r.UserExchanges(context.Background(), "u1", nil, nil)
	assert.Equal(t, []string{"kraken", "okx"}, got)

	// Second resolution hits the local cache; mutating the reader must not
	// change the answer.
	r.accounts = &fakeAccounts{exchanges: []string{"bybit"}}
	got = r.UserExchanges(context.Background(), "u1", nil, nil)
	assert.Equal(t, []string{"kraken", "okx"}, got)
}

func TestUserExchangesFallbacks(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()

	// Reader error falls to caller defaults.
	r := testResolver(t, &fakeAccounts{err: errors.New("db down")}, mem)
	got := r.UserExchanges(context.Background(), "u1", nil, []string{"gateio"})
	assert.Equal(t, []string{"gateio"}, got)

	// No defaults either: platform defaults.
	got = r.UserExchanges(context.Background(), "u1", nil, nil)
	assert.Equal(t, config.Default().Discovery.DefaultExchanges, got)
}

func TestSymbolUniverseRequestedTruncated(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()
	r := testResolver(t, &fakeAccounts{}, mem)

	got := r.SymbolUniverse(context.Background(), "u1", []string{"BTC", "ETH", "SOL"}, nil, nil, 2, domain.TierRetail)
	assert.Equal(t, []string{"BTC", "ETH"}, got)
}

func TestSymbolUniverseServesCache(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()
	r := testResolver(t, &fakeAccounts{}, mem)
	ctx := context.Background()

	key := symbolCacheKey("u1", []string{"binance"}, domain.TierRetail, []domain.AssetType{domain.AssetTypeSpot})
	require.NoError(t, cache.SetJSON(ctx, mem, key, []string{"BTC", "ETH"}, time.Minute))

	// discovery is nil: a cache miss would panic, so a clean result proves
	// the cached path.
	got := r.SymbolUniverse(ctx, "u1", nil, []string{"binance"}, []domain.AssetType{domain.AssetTypeSpot}, 10, domain.TierRetail)
	assert.Equal(t, []string{"BTC", "ETH"}, got)
}

func TestRankAllowedSymbolsFiltersTier(t *testing.T) {
	mem := cache.NewMemoryStore(64)
	defer mem.Stop()
	r := testResolver(t, &fakeAccounts{symbols: []string{"aaa", "BBB", "CCC"}}, mem)

	buckets := Classify([]map[string]domain.Asset{{
		"AAA": asset("AAA", "binance", 1, 1_500_000_000), // institutional
		"BBB": asset("BBB", "binance", 1, 15_000_000),    // professional
		"CCC": asset("CCC", "binance", 1, 50_000),        // emerging
	}}, nil)
	u := &Universe{Tiers: buckets}

	got := r.rankAllowedSymbols(context.Background(), "u1", u, domain.TierProfessional)
	assert.Equal(t, []string{"AAA", "BBB"}, got, "emerging symbol excluded, volume order kept, lowercase input matched")
}
