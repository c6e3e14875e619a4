package tickers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/httpx"
)

// Metrics is the observability hook the fetcher reports into.
type Metrics interface {
	RateLimitSkip(exchange string)
	FetchError(exchange string)
	TickersFetched(exchange string, count int)
}

type noopMetrics struct{}

func (noopMetrics) RateLimitSkip(string)     {}
func (noopMetrics) FetchError(string)        {}
func (noopMetrics) TickersFetched(string, int) {}

// Fetcher performs one rate-limited, timeout-bounded GET per
// (exchange, asset type) and parses the payload into normalized assets.
// Absence of data is a valid outcome: every failure path returns an empty
// map and logs, nothing propagates.
type Fetcher struct {
	client   *httpx.Client
	store    cache.Store
	window   time.Duration
	cooldown time.Duration
	metrics  Metrics
	log      zerolog.Logger

	mu     sync.Mutex
	local  map[string]*rate.Limiter // advisory in-process token buckets
}

// NewFetcher wires a ticker fetcher. The store carries the shared
// rate-limit window counters and 429 cooldown markers.
func NewFetcher(client *httpx.Client, store cache.Store, window, cooldown time.Duration, metrics Metrics, log zerolog.Logger) *Fetcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Fetcher{
		client:   client,
		store:    store,
		window:   window,
		cooldown: cooldown,
		metrics:  metrics,
		log:      log.With().Str("component", "ticker_fetcher").Logger(),
		local:    make(map[string]*rate.Limiter),
	}
}

func cooldownKey(exchange string) string { return "ratelimit:cooldown:" + exchange }
func windowKey(exchange string) string   { return "ratelimit:window:" + exchange }

// Fetch retrieves and parses the ticker feed for one exchange and market.
func (f *Fetcher) Fetch(ctx context.Context, ex domain.ExchangeDescriptor, at domain.AssetType) map[string]domain.Asset {
	url := ex.TickerURL(at)
	if url == "" {
		return nil
	}
	log := f.log.With().Str("exchange", ex.ID).Str("asset_type", string(at)).Logger()

	if f.coolingDown(ctx, ex.ID) {
		log.Debug().Msg("exchange in rate-limit cooldown, skipping")
		f.metrics.RateLimitSkip(ex.ID)
		return nil
	}
	if !f.allow(ctx, ex) {
		log.Debug().Msg("rate limit window exhausted, skipping")
		f.metrics.RateLimitSkip(ex.ID)
		return nil
	}

	status, body, err := f.client.GetRaw(ctx, url)
	if err != nil {
		log.Warn().Err(err).Msg("ticker fetch failed")
		f.metrics.FetchError(ex.ID)
		return nil
	}
	if status == http.StatusTooManyRequests {
		log.Warn().Dur("cooldown", f.cooldown).Msg("exchange returned 429, marking cold")
		f.markCold(ctx, ex.ID)
		f.metrics.RateLimitSkip(ex.ID)
		return nil
	}
	if status != http.StatusOK {
		log.Warn().Int("status", status).Msg("ticker fetch returned non-200")
		f.metrics.FetchError(ex.ID)
		return nil
	}

	parse, ok := Lookup(ex.ParserKey)
	if !ok {
		log.Warn().Str("parser", ex.ParserKey).Msg("no parser registered")
		return nil
	}
	assets, err := parse(ex.ID, body)
	if err != nil {
		log.Warn().Err(err).Msg("ticker parse failed")
		f.metrics.FetchError(ex.ID)
		return nil
	}

	for sym, a := range assets {
		if !a.Valid() {
			delete(assets, sym)
		}
	}
	f.metrics.TickersFetched(ex.ID, len(assets))
	log.Debug().Int("assets", len(assets)).Msg("ticker feed parsed")
	return assets
}

// FetchAll fans out across exchanges under the given concurrency bound and
// returns one asset map per exchange that yielded data.
func (f *Fetcher) FetchAll(ctx context.Context, exchanges []domain.ExchangeDescriptor, types []domain.AssetType, concurrency int) []map[string]domain.Asset {
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)
	resultCh := make(chan map[string]domain.Asset, len(exchanges)*len(types))

	var wg sync.WaitGroup
	for _, ex := range exchanges {
		for _, at := range types {
			wg.Add(1)
			go func(ex domain.ExchangeDescriptor, at domain.AssetType) {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return
				}
				if assets := f.Fetch(ctx, ex, at); len(assets) > 0 {
					select {
					case resultCh <- assets:
					case <-ctx.Done():
					}
				}
			}(ex, at)
		}
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var out []map[string]domain.Asset
	for assets := range resultCh {
		out = append(out, assets)
	}
	return out
}

// coolingDown reports whether the exchange was marked cold by a 429.
func (f *Fetcher) coolingDown(ctx context.Context, exchange string) bool {
	_, ok, err := f.store.Get(ctx, cooldownKey(exchange))
	if err != nil {
		return false // advisory only; cache failure never blocks
	}
	return ok
}

func (f *Fetcher) markCold(ctx context.Context, exchange string) {
	if err := f.store.Set(ctx, cooldownKey(exchange), fmt.Sprintf("%d", time.Now().Unix()), f.cooldown); err != nil {
		f.log.Error().Err(err).Str("exchange", exchange).Msg("failed to record cooldown")
	}
}

// allow increments the shared per-exchange window counter and compares
// against the descriptor budget. The counter is advisory: slight overshoot
// under race is acceptable, and cache failure falls through to the local
// token bucket alone.
func (f *Fetcher) allow(ctx context.Context, ex domain.ExchangeDescriptor) bool {
	n, err := f.store.Incr(ctx, windowKey(ex.ID))
	if err == nil {
		if n == 1 {
			_ = f.store.Expire(ctx, windowKey(ex.ID), f.window)
		}
		if ex.RateLimitPerMinute > 0 && n > int64(ex.RateLimitPerMinute) {
			return false
		}
	}
	return f.localLimiter(ex).Allow()
}

func (f *Fetcher) localLimiter(ex domain.ExchangeDescriptor) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.local[ex.ID]
	if !ok {
		rps := float64(ex.RateLimitPerMinute) / 60.0
		if rps <= 0 {
			rps = 1
		}
		burst := ex.RateLimitPerMinute / 10
		if burst < 5 {
			burst = 5
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
		f.local[ex.ID] = lim
	}
	return lim
}
