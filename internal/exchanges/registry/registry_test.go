package registry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/opportune/internal/domain"
)

func TestStaticTable(t *testing.T) {
	r := New(zerolog.Nop())

	for _, id := range []string{"binance", "kraken", "kucoin", "coinbase", "okx", "bybit", "gateio"} {
		d, ok := r.Get(id)
		require.True(t, ok, "static table must contain %s", id)
		assert.True(t, d.Valid())
		assert.NotEmpty(t, d.ParserKey)
		assert.Greater(t, d.RateLimitPerMinute, 0)
	}
}

func TestListFilters(t *testing.T) {
	r := New(zerolog.Nop())

	futures := r.List(Filter{RequiredCapabilities: []domain.Capability{domain.CapFuturesTrading}})
	require.NotEmpty(t, futures)
	for _, d := range futures {
		assert.True(t, d.Has(domain.CapFuturesTrading))
	}

	subset := r.List(Filter{IDs: []string{"kraken", "binance"}})
	require.Len(t, subset, 2)
	// Ordered by priority: binance before kraken.
	assert.Equal(t, "binance", subset[0].ID)
	assert.Equal(t, "kraken", subset[1].ID)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := New(zerolog.Nop())
	assert.False(t, r.Register(domain.ExchangeDescriptor{ID: "nofeed"}))
	assert.True(t, r.Register(domain.ExchangeDescriptor{
		ID:            "newex",
		SpotTickerURL: "https://api.newex.test/tickers",
	}))
}

func TestInferCapabilities(t *testing.T) {
	low := DiscoveredExchange{HasSpot: true, TrustScore: 3, Volume24hBTC: 50}
	caps := InferCapabilities(low)
	assert.NotContains(t, caps, domain.CapFuturesTrading)
	assert.NotContains(t, caps, domain.CapWebsocketStreams)

	trusted := DiscoveredExchange{HasSpot: true, TrustScore: 8, Volume24hBTC: 200}
	caps = InferCapabilities(trusted)
	assert.Contains(t, caps, domain.CapTradingHistory)
	assert.Contains(t, caps, domain.CapWebsocketStreams)
	assert.Contains(t, caps, domain.CapFuturesTrading)
	assert.NotContains(t, caps, domain.CapOptionsTrading)

	whale := DiscoveredExchange{HasSpot: true, TrustScore: 2, Volume24hBTC: 20000}
	caps = InferCapabilities(whale)
	assert.Contains(t, caps, domain.CapFuturesTrading)
	assert.Contains(t, caps, domain.CapOptionsTrading)
}

func TestInferRateLimit(t *testing.T) {
	assert.Equal(t, 1200, InferRateLimit(DiscoveredExchange{TrustScore: 9, Volume24hBTC: 15000}))
	assert.Equal(t, 600, InferRateLimit(DiscoveredExchange{TrustScore: 7, Volume24hBTC: 6000}))
	assert.Equal(t, 300, InferRateLimit(DiscoveredExchange{TrustScore: 5, Volume24hBTC: 1500}))
	assert.Equal(t, 60, InferRateLimit(DiscoveredExchange{TrustScore: 4, Volume24hBTC: 500}))
	// Both conditions are required for each band.
	assert.Equal(t, 60, InferRateLimit(DiscoveredExchange{TrustScore: 9, Volume24hBTC: 100}))
}

type staticSource struct {
	records []DiscoveredExchange
}

func (s staticSource) DiscoverExchanges(context.Context) ([]DiscoveredExchange, error) {
	return s.records, nil
}

func TestDiscovererImportsProbedExchanges(t *testing.T) {
	reg := New(zerolog.Nop())
	d := NewDiscoverer(nil, reg, 4, time.Second, zerolog.Nop())
	d.probe = func(ctx context.Context, apiURL string) bool {
		return apiURL == "https://api.good.test"
	}

	n := d.Run(context.Background(), staticSource{records: []DiscoveredExchange{
		{ID: "goodex", Name: "GoodEx", APIURL: "https://api.good.test", HasSpot: true, TrustScore: 8, Volume24hBTC: 5000},
		{ID: "badex", Name: "BadEx", APIURL: "https://api.bad.test", HasSpot: true, TrustScore: 8, Volume24hBTC: 5000},
		{ID: "thin", Name: "Thin", APIURL: "https://api.thin.test", HasSpot: true, TrustScore: 9, Volume24hBTC: 10},
		{ID: "binance", Name: "Imposter", APIURL: "https://api.fake.test", HasSpot: true, TrustScore: 9, Volume24hBTC: 99999},
	}})

	assert.Equal(t, 1, n)
	imported, ok := reg.Get("goodex")
	require.True(t, ok)
	assert.Equal(t, 600, imported.RateLimitPerMinute)
	assert.True(t, imported.Has(domain.CapFuturesTrading))

	_, ok = reg.Get("badex")
	assert.False(t, ok)

	// Static entries are never overwritten by discovery.
	binance, _ := reg.Get("binance")
	assert.Equal(t, "Binance", binance.Name)
}

func TestMatchesShape(t *testing.T) {
	assert.True(t, matchesShape([]byte(`{"symbol":"BTCUSDT","price":"67000.12"}`), "/ticker", []string{"price", "symbol"}))
	assert.True(t, matchesShape([]byte(`[{"symbol":"BTC-USD","last":"67000"}]`), "/tickers", []string{"symbol", "last"}))
	assert.True(t, matchesShape([]byte(`{"serverTime":1726000000000}`), "/time", []string{"serverTime"}))
	assert.False(t, matchesShape([]byte(`{"serverTime":12}`), "/time", []string{"serverTime"}), "small epoch must be rejected")
	assert.False(t, matchesShape([]byte(`{"error":"not found"}`), "/ticker", []string{"price", "symbol"}))
	assert.False(t, matchesShape([]byte(`not json`), "/ticker", []string{"price"}))
}
