package registry

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/httpx"
)

// DiscoveredExchange is the normalized record a third-party exchange
// metadata source yields: identity, API root, trust score, and 24h volume
// denominated in BTC.
type DiscoveredExchange struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	APIURL       string  `json:"api_url"`
	HasSpot      bool    `json:"has_spot"`
	HasFutures   bool    `json:"has_futures"`
	TrustScore   float64 `json:"trust_score"`
	Volume24hBTC float64 `json:"volume_24h_btc"`
}

// MetadataSource supplies discovered exchange records.
type MetadataSource interface {
	DiscoverExchanges(ctx context.Context) ([]DiscoveredExchange, error)
}

// InferCapabilities applies the trust/volume heuristics to a discovered
// exchange. Base capabilities at trust>=7 or vol>=1000 BTC, futures at
// trust>=8 or vol>=5000, options at trust>=9 or vol>=10000.
func InferCapabilities(rec DiscoveredExchange) []domain.Capability {
	var caps []domain.Capability
	if rec.HasSpot {
		caps = append(caps, domain.CapSpotTrading, domain.CapOrderBook)
	}
	if rec.TrustScore >= 7 || rec.Volume24hBTC >= 1000 {
		caps = append(caps, domain.CapTradingHistory, domain.CapWebsocketStreams)
	}
	if rec.TrustScore >= 8 || rec.Volume24hBTC >= 5000 {
		caps = append(caps, domain.CapFuturesTrading)
	}
	if rec.TrustScore >= 9 || rec.Volume24hBTC >= 10000 {
		caps = append(caps, domain.CapOptionsTrading)
	}
	return caps
}

// InferRateLimit assigns a requests-per-minute budget from trust and volume.
func InferRateLimit(rec DiscoveredExchange) int {
	switch {
	case rec.TrustScore >= 9 && rec.Volume24hBTC >= 10000:
		return 1200
	case rec.TrustScore >= 7 && rec.Volume24hBTC >= 5000:
		return 600
	case rec.TrustScore >= 5 && rec.Volume24hBTC >= 1000:
		return 300
	default:
		return 60
	}
}

// Discoverer imports dynamically discovered exchanges after a compatibility
// probe. Probes run under a bounded semaphore with a fixed budget per
// exchange; failures simply drop the candidate.
type Discoverer struct {
	client      *httpx.Client
	registry    *Registry
	minVolume   float64
	sem         chan struct{}
	probeBudget time.Duration
	log         zerolog.Logger

	// probe override for tests
	probe func(ctx context.Context, apiURL string) bool
}

// NewDiscoverer wires a discoverer against the registry.
func NewDiscoverer(client *httpx.Client, reg *Registry, concurrency int, probeBudget time.Duration, log zerolog.Logger) *Discoverer {
	if concurrency <= 0 {
		concurrency = 10
	}
	if probeBudget <= 0 {
		probeBudget = 15 * time.Second
	}
	d := &Discoverer{
		client:      client,
		registry:    reg,
		minVolume:   100, // BTC; below this the feed is too thin to classify
		sem:         make(chan struct{}, concurrency),
		probeBudget: probeBudget,
		log:         log.With().Str("component", "exchange_discovery").Logger(),
	}
	d.probe = d.probeCompat
	return d
}

// Run pulls records from the source, probes them, and registers survivors.
// It returns the number of imported exchanges; zero means the static table
// remains the whole universe.
func (d *Discoverer) Run(ctx context.Context, source MetadataSource) int {
	records, err := source.DiscoverExchanges(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("exchange metadata source failed, keeping static table")
		return 0
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		imported int
	)
	for _, rec := range records {
		if rec.ID == "" || rec.APIURL == "" || rec.Volume24hBTC < d.minVolume {
			continue
		}
		if _, exists := d.registry.Get(rec.ID); exists {
			continue // static entries win
		}

		wg.Add(1)
		go func(rec DiscoveredExchange) {
			defer wg.Done()
			select {
			case d.sem <- struct{}{}:
				defer func() { <-d.sem }()
			case <-ctx.Done():
				return
			}

			probeCtx, cancel := context.WithTimeout(ctx, d.probeBudget)
			defer cancel()
			if !d.probe(probeCtx, rec.APIURL) {
				d.log.Debug().Str("exchange", rec.ID).Msg("compatibility probe failed")
				return
			}

			desc := descriptorFromRecord(rec)
			if d.registry.Register(desc) {
				mu.Lock()
				imported++
				mu.Unlock()
				d.log.Info().Str("exchange", rec.ID).
					Int("rate_limit", desc.RateLimitPerMinute).
					Msg("imported discovered exchange")
			}
		}(rec)
	}
	wg.Wait()
	return imported
}

func descriptorFromRecord(rec DiscoveredExchange) domain.ExchangeDescriptor {
	base := strings.TrimRight(rec.APIURL, "/")
	desc := domain.ExchangeDescriptor{
		ID:                 rec.ID,
		Name:               rec.Name,
		ParserKey:          "generic",
		RateLimitPerMinute: InferRateLimit(rec),
		Capabilities:       InferCapabilities(rec),
		Priority:           100, // discovered venues rank after static ones
	}
	if rec.HasSpot || !rec.HasFutures {
		desc.SpotTickerURL = base + "/tickers"
		desc.PriceURLTemplate = base + "/ticker/%s"
	}
	if rec.HasFutures {
		desc.FuturesTickerURL = base + "/futures/tickers"
	}
	return desc
}

// probeEndpoints are the candidate paths a compatible exchange answers on,
// paired with the JSON keys that validate the response shape.
var probeEndpoints = []struct {
	path string
	keys []string
}{
	{"/ticker", []string{"price", "symbol", "last"}},
	{"/ticker/BTCUSDT", []string{"price", "symbol", "last"}},
	{"/markets", []string{"symbol", "id", "name"}},
	{"/time", []string{"serverTime", "time"}},
	{"/tickers", []string{"symbol", "last", "price"}},
}

// probeCompat issues short requests against the candidate endpoints and
// accepts the exchange if any answers HTTP 200 with a matching JSON shape.
func (d *Discoverer) probeCompat(ctx context.Context, apiURL string) bool {
	base := strings.TrimRight(apiURL, "/")
	for _, ep := range probeEndpoints {
		if ctx.Err() != nil {
			return false
		}
		status, body, err := d.client.GetRaw(ctx, base+ep.path)
		if err != nil || status != 200 {
			continue
		}
		if matchesShape(body, ep.path, ep.keys) {
			return true
		}
	}
	return false
}

func matchesShape(body []byte, path string, keys []string) bool {
	var objects []map[string]any

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		objects = append(objects, obj)
	} else {
		var arr []map[string]any
		if err := json.Unmarshal(body, &arr); err != nil || len(arr) == 0 {
			return false
		}
		objects = append(objects, arr[0])
	}

	for _, o := range objects {
		for _, key := range keys {
			val, ok := o[key]
			if !ok {
				continue
			}
			if path == "/time" {
				// Server time must look like an epoch: numeric and > 1e9.
				if n, ok := val.(float64); ok && n > 1e9 {
					return true
				}
				continue
			}
			return true
		}
	}
	return false
}
