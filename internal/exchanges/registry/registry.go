// Package registry enumerates the exchanges the engine may scan: a static
// descriptor table augmented at startup by dynamic discovery of third-party
// exchange metadata.
package registry

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/domain"
)

// Registry holds exchange descriptors keyed by id.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]domain.ExchangeDescriptor
	log  zerolog.Logger
}

// Filter narrows List results.
type Filter struct {
	RequiredCapabilities []domain.Capability
	IDs                  []string
}

// New creates a registry seeded with the static descriptor table.
func New(log zerolog.Logger) *Registry {
	r := &Registry{
		byID: make(map[string]domain.ExchangeDescriptor),
		log:  log.With().Str("component", "exchange_registry").Logger(),
	}
	for _, d := range staticTable() {
		r.byID[d.ID] = d
	}
	return r
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (domain.ExchangeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Register adds or replaces a descriptor. Invalid descriptors (no feed URL)
// are rejected.
func (r *Registry) Register(d domain.ExchangeDescriptor) bool {
	if !d.Valid() {
		r.log.Warn().Str("exchange", d.ID).Msg("rejecting descriptor without feed URL")
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ID] = d
	return true
}

// List returns descriptors matching the filter, ordered by priority then id.
func (r *Registry) List(f Filter) []domain.ExchangeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idSet := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		idSet[id] = true
	}

	var out []domain.ExchangeDescriptor
outer:
	for _, d := range r.byID {
		if len(idSet) > 0 && !idSet[d.ID] {
			continue
		}
		for _, c := range f.RequiredCapabilities {
			if !d.Has(c) {
				continue outer
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// staticTable is the built-in descriptor set. Dynamic discovery may extend it
// but the engine always works with these alone.
func staticTable() []domain.ExchangeDescriptor {
	return []domain.ExchangeDescriptor{
		{
			ID:                 "binance",
			Name:               "Binance",
			SpotTickerURL:      "https://api.binance.com/api/v3/ticker/24hr",
			FuturesTickerURL:   "https://fapi.binance.com/fapi/v1/ticker/24hr",
			PriceURLTemplate:   "https://api.binance.com/api/v3/ticker/price?symbol=%s",
			ParserKey:          "binance",
			RateLimitPerMinute: 1200,
			Priority:           1,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapFuturesTrading, domain.CapMarginTrading,
				domain.CapOrderBook, domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
		{
			ID:                 "kraken",
			Name:               "Kraken",
			SpotTickerURL:      "https://api.kraken.com/0/public/Ticker",
			PriceURLTemplate:   "https://api.kraken.com/0/public/Ticker?pair=%s",
			ParserKey:          "kraken",
			RateLimitPerMinute: 60,
			Priority:           2,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapMarginTrading,
				domain.CapOrderBook, domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
		{
			ID:                 "kucoin",
			Name:               "KuCoin",
			SpotTickerURL:      "https://api.kucoin.com/api/v1/market/allTickers",
			PriceURLTemplate:   "https://api.kucoin.com/api/v1/market/orderbook/level1?symbol=%s",
			ParserKey:          "kucoin",
			RateLimitPerMinute: 600,
			Priority:           3,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapFuturesTrading,
				domain.CapOrderBook, domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
		{
			ID:                 "coinbase",
			Name:               "Coinbase",
			SpotTickerURL:      "https://api.exchange.coinbase.com/products/stats",
			PriceURLTemplate:   "https://api.exchange.coinbase.com/products/%s/ticker",
			ParserKey:          "coinbase",
			RateLimitPerMinute: 600,
			Priority:           4,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapOrderBook,
				domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
		{
			ID:                 "okx",
			Name:               "OKX",
			SpotTickerURL:      "https://www.okx.com/api/v5/market/tickers?instType=SPOT",
			FuturesTickerURL:   "https://www.okx.com/api/v5/market/tickers?instType=SWAP",
			PriceURLTemplate:   "https://www.okx.com/api/v5/market/ticker?instId=%s",
			ParserKey:          "okx",
			RateLimitPerMinute: 600,
			Priority:           5,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapFuturesTrading, domain.CapOptionsTrading,
				domain.CapOrderBook, domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
		{
			ID:                 "bybit",
			Name:               "Bybit",
			SpotTickerURL:      "https://api.bybit.com/v5/market/tickers?category=spot",
			FuturesTickerURL:   "https://api.bybit.com/v5/market/tickers?category=linear",
			PriceURLTemplate:   "https://api.bybit.com/v5/market/tickers?category=spot&symbol=%s",
			ParserKey:          "bybit",
			RateLimitPerMinute: 600,
			Priority:           6,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapFuturesTrading,
				domain.CapOrderBook, domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
		{
			ID:                 "gateio",
			Name:               "Gate.io",
			SpotTickerURL:      "https://api.gateio.ws/api/v4/spot/tickers",
			PriceURLTemplate:   "https://api.gateio.ws/api/v4/spot/tickers?currency_pair=%s",
			ParserKey:          "gateio",
			RateLimitPerMinute: 300,
			Priority:           7,
			Capabilities: []domain.Capability{
				domain.CapSpotTrading, domain.CapOrderBook,
				domain.CapWebsocketStreams, domain.CapTradingHistory,
			},
		},
	}
}
