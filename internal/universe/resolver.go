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
)

// AccountReader supplies per-user exchange account metadata from the
// read-only store.
type AccountReader interface {
	// ActiveExchanges returns exchange names with an ACTIVE,
	// trading-enabled account for the user.
	ActiveExchanges(ctx context.Context, userID string) ([]string, error)
	// AllowedSymbols returns the union of the user's per-account symbol
	// allow-lists.
	AllowedSymbols(ctx context.Context, userID string) ([]string, error)
}

// Resolver determines the exchange list and symbol list one user's scan
// covers.
type Resolver struct {
	accounts  AccountReader
	discovery *Discovery
	store     cache.Store // redis mirror
	local     cache.Store // 5-minute in-process cache
	cfg       config.DiscoveryConfig
	log       zerolog.Logger
}

// NewResolver wires a resolver. local should be a small in-process store.
func NewResolver(accounts AccountReader, discovery *Discovery, store, local cache.Store, cfg config.DiscoveryConfig, log zerolog.Logger) *Resolver {
	return &Resolver{
		accounts:  accounts,
		discovery: discovery,
		store:     store,
		local:     local,
		cfg:       cfg,
		log:       log.With().Str("component", "universe_resolver").Logger(),
	}
}

// UserExchanges resolves the exchange list: explicit request wins, then the
// user's active trading accounts, then the caller defaults, then platform
// defaults. Never returns an empty list.
func (r *Resolver) UserExchanges(ctx context.Context, userID string, requested, defaults []string) []string {
	if len(requested) > 0 {
		return dedupe(requested)
	}

	key := "user_exchanges:" + userID
	var cached []string
	if ok, _ := cache.GetJSON(ctx, r.local, key, &cached); ok && len(cached) > 0 {
		return cached
	}

	if r.accounts != nil {
		fromDB, err := r.accounts.ActiveExchanges(ctx, userID)
		if err != nil {
			r.log.Error().Err(err).Str("user_id", userID).Msg("exchange account lookup failed")
		} else if len(fromDB) > 0 {
			resolved := dedupe(fromDB)
			_ = cache.SetJSON(ctx, r.local, key, resolved, 5*time.Minute)
			_ = cache.SetJSON(ctx, r.store, key, resolved, 5*time.Minute)
			return resolved
		}
	}

	if len(defaults) > 0 {
		return dedupe(defaults)
	}
	return append([]string(nil), r.cfg.DefaultExchanges...)
}

// SymbolUniverse resolves the symbol list for a scan. Explicit request wins
// (truncated to limit). Otherwise the user's allowed symbols are ranked by
// classified volume and filtered to tiers the user may access; if nothing
// remains, the discovered universe's top-N fills in. The final fallback is
// an empty list, which callers must tolerate.
func (r *Resolver) SymbolUniverse(ctx context.Context, userID string, requested, exchanges []string, assetTypes []domain.AssetType, limit int, maxTier domain.Tier) []string {
	if limit <= 0 {
		limit = 50
	}
	if len(requested) > 0 {
		out := dedupe(requested)
		if len(out) > limit {
			out = out[:limit]
		}
		return out
	}

	key := symbolCacheKey(userID, exchanges, maxTier, assetTypes)
	var cached []string
	if ok, _ := cache.GetJSON(ctx, r.store, key, &cached); ok {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached
	}

	u, err := r.discovery.Discover(ctx, maxTier, exchanges, false)
	if err != nil || u == nil {
		r.log.Warn().Err(err).Msg("universe unavailable for symbol resolution")
		return nil
	}

	symbols := r.rankAllowedSymbols(ctx, userID, u, maxTier)
	if len(symbols) == 0 {
		for _, a := range u.TopByVolume(limit) {
			symbols = append(symbols, a.Symbol)
		}
	}
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}

	if len(symbols) > 0 {
		if err := cache.SetJSON(ctx, r.store, key, symbols, r.cfg.SymbolCacheTTL); err != nil {
			r.log.Error().Err(err).Str("key", key).Msg("symbol cache write failed")
		}
	}
	return symbols
}

// rankAllowedSymbols orders the user's allow-listed symbols by classified
// volume, keeping only symbols whose tier the user may access.
func (r *Resolver) rankAllowedSymbols(ctx context.Context, userID string, u *Universe, maxTier domain.Tier) []string {
	if r.accounts == nil {
		return nil
	}
	allowed, err := r.accounts.AllowedSymbols(ctx, userID)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("allowed symbol lookup failed")
		return nil
	}

	type ranked struct {
		symbol string
		volume float64
	}
	var rows []ranked
	for _, sym := range dedupe(allowed) {
		asset, ok := u.Lookup(strings.ToUpper(sym))
		if !ok {
			continue
		}
		if asset.Tier.Priority() > maxTier.Priority() {
			continue
		}
		rows = append(rows, ranked{symbol: asset.Symbol, volume: asset.Volume24hUSD})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].volume > rows[j].volume })

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.symbol)
	}
	return out
}

func symbolCacheKey(userID string, exchanges []string, tier domain.Tier, assetTypes []domain.AssetType) string {
	scope := userID
	if scope == "" {
		scope = "global"
	}
	ex := append([]string(nil), exchanges...)
	sort.Strings(ex)
	types := make([]string, 0, len(assetTypes))
	for _, t := range assetTypes {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return "symbols:" + scope + ":" + strings.Join(ex, ",") + ":" + string(tier) + ":" + strings.Join(types, ",")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
