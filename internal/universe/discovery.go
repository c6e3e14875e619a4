package universe

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/exchanges/registry"
	"github.com/quantpulse/opportune/internal/exchanges/tickers"
)

// Universe is the published result of one discovery run. It is immutable
// after publication.
type Universe struct {
	Tiers       map[domain.Tier][]domain.Asset `json:"tiers"`
	TotalAssets int                            `json:"total_assets"`
	Exchanges   []string                       `json:"exchanges"`
	MinTier     domain.Tier                    `json:"min_tier"`
	Timestamp   time.Time                      `json:"timestamp"`
}

// Assets flattens the tier buckets in tier-priority order.
func (u *Universe) Assets() []domain.Asset {
	var out []domain.Asset
	for _, t := range domain.Tiers() {
		out = append(out, u.Tiers[t]...)
	}
	return out
}

// TopByVolume returns up to n symbols ordered by 24h USD volume descending.
func (u *Universe) TopByVolume(n int) []domain.Asset {
	all := u.Assets()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Volume24hUSD > all[j].Volume24hUSD
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Lookup finds the classified asset for a base symbol.
func (u *Universe) Lookup(symbol string) (domain.Asset, bool) {
	for _, t := range domain.Tiers() {
		for _, a := range u.Tiers[t] {
			if a.Symbol == symbol {
				return a, true
			}
		}
	}
	return domain.Asset{}, false
}

// Discovery is the read-through universe cache: a fresh cached
// classification is served as-is, otherwise tickers are fetched, classified,
// and stored.
type Discovery struct {
	fetcher  *tickers.Fetcher
	registry *registry.Registry
	store    cache.Store
	cfg      config.DiscoveryConfig
	log      zerolog.Logger
}

// NewDiscovery wires the universe discovery service.
func NewDiscovery(fetcher *tickers.Fetcher, reg *registry.Registry, store cache.Store, cfg config.DiscoveryConfig, log zerolog.Logger) *Discovery {
	return &Discovery{
		fetcher:  fetcher,
		registry: reg,
		store:    store,
		cfg:      cfg,
		log:      log.With().Str("component", "universe_discovery").Logger(),
	}
}

type cachedUniverse struct {
	Universe  *Universe `json:"universe"`
	Timestamp time.Time `json:"timestamp"`
}

func universeKey(minTier domain.Tier, exchangeIDs []string) string {
	ids := append([]string(nil), exchangeIDs...)
	sort.Strings(ids)
	return "enterprise_assets:" + string(minTier) + ":" + strings.Join(ids, ",")
}

// Discover returns the tiered universe for the exchange set, from cache when
// fresh. Cache I/O failures fall through to the cold path.
func (d *Discovery) Discover(ctx context.Context, minTier domain.Tier, exchangeIDs []string, forceRefresh bool) (*Universe, error) {
	key := universeKey(minTier, exchangeIDs)

	if !forceRefresh {
		var cached cachedUniverse
		ok, err := cache.GetJSON(ctx, d.store, key, &cached)
		if err != nil {
			d.log.Error().Err(err).Str("key", key).Msg("universe cache read failed, going cold")
		}
		if ok && time.Since(cached.Timestamp) < d.cfg.UniverseReadTTL && cached.Universe != nil {
			d.log.Debug().Str("key", key).Msg("universe cache hit")
			return cached.Universe, nil
		}
	}

	descriptors := d.registry.List(registry.Filter{IDs: exchangeIDs})
	priorities := make(map[string]int, len(descriptors))
	for _, desc := range descriptors {
		priorities[desc.ID] = desc.Priority
	}

	perExchange := d.fetcher.FetchAll(ctx, descriptors,
		[]domain.AssetType{domain.AssetTypeSpot}, 10)

	buckets := FilterMinTier(Classify(perExchange, priorities), minTier)
	total := 0
	for _, assets := range buckets {
		total += len(assets)
	}

	u := &Universe{
		Tiers:       buckets,
		TotalAssets: total,
		Exchanges:   exchangeIDs,
		MinTier:     minTier,
		Timestamp:   time.Now().UTC(),
	}

	if err := cache.SetJSON(ctx, d.store, key, cachedUniverse{Universe: u, Timestamp: u.Timestamp}, d.cfg.UniverseWriteTTL); err != nil {
		d.log.Error().Err(err).Str("key", key).Msg("universe cache write failed")
	}
	d.log.Info().Int("assets", total).Strs("exchanges", exchangeIDs).
		Str("min_tier", string(minTier)).Msg("universe discovered")
	return u, nil
}
