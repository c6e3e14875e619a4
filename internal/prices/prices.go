// Package prices serves spot prices through a two-level cache with
// single-flight deduplication and batched pre-warming ahead of scans.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/httpx"
)

// Registry is the slice of the exchange registry the price service needs.
type Registry interface {
	Get(id string) (domain.ExchangeDescriptor, bool)
}

// Service fetches and caches per-exchange spot prices.
type Service struct {
	client *httpx.Client
	reg    Registry
	store  cache.Store
	sf     singleflight.Group
	cfg    config.DiscoveryConfig
	log    zerolog.Logger
}

// New wires the price service.
func New(client *httpx.Client, reg Registry, store cache.Store, cfg config.DiscoveryConfig, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		reg:    reg,
		store:  store,
		cfg:    cfg,
		log:    log.With().Str("component", "price_service").Logger(),
	}
}

func priceKey(exchange, symbol string) string {
	return "price:" + exchange + ":" + symbol
}

// Price returns the spot USD price of symbol on exchange. Cache first;
// concurrent misses for the same key share one upstream request.
func (s *Service) Price(ctx context.Context, exchange, symbol string) (float64, error) {
	key := priceKey(exchange, symbol)
	if raw, ok, _ := s.store.Get(ctx, key); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			return v, nil
		}
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		price, err := s.fetch(ctx, exchange, symbol)
		if err != nil {
			return 0.0, err
		}
		if err := s.store.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), s.cfg.PreloadTTL); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("price cache write failed")
		}
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Preload warms the price cache for the symbol set across the exchange list.
// Work is batched and bounded; individual failures are logged and skipped.
func (s *Service) Preload(ctx context.Context, exchanges, symbols []string) int {
	type pair struct{ exchange, symbol string }
	var pairs []pair
	for _, ex := range exchanges {
		for _, sym := range symbols {
			pairs = append(pairs, pair{ex, sym})
		}
	}
	if batch := s.cfg.PreloadBatchSize; batch > 0 && len(pairs) > batch {
		pairs = pairs[:batch]
	}

	concurrency := s.cfg.PreloadConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	warmed := 0

	start := time.Now()
	for _, p := range pairs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return warmed
		}
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := s.Price(ctx, p.exchange, p.symbol); err == nil {
				mu.Lock()
				warmed++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	s.log.Debug().Int("pairs", len(pairs)).Int("warmed", warmed).
		Dur("elapsed", time.Since(start)).Msg("price preload complete")
	return warmed
}

// fetch pulls one price from the exchange's single-symbol endpoint.
func (s *Service) fetch(ctx context.Context, exchange, symbol string) (float64, error) {
	desc, ok := s.reg.Get(exchange)
	if !ok || desc.PriceURLTemplate == "" {
		return 0, fmt.Errorf("no price endpoint for exchange %s", exchange)
	}

	url := fmt.Sprintf(desc.PriceURLTemplate, FormatPair(desc.ParserKey, symbol))
	status, body, err := s.client.GetRaw(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("price fetch %s/%s: %w", exchange, symbol, err)
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("price fetch %s/%s: status %d", exchange, symbol, status)
	}

	price, ok := ExtractPrice(body)
	if !ok || price <= 0 {
		return 0, fmt.Errorf("no price in %s response for %s", exchange, symbol)
	}
	return price, nil
}

// FormatPair renders a base symbol as the exchange's USD(T) pair notation.
func FormatPair(parserKey, symbol string) string {
	base := strings.ToUpper(symbol)
	switch parserKey {
	case "kucoin", "okx":
		return base + "-USDT"
	case "coinbase":
		return base + "-USD"
	case "gateio":
		return base + "_USDT"
	case "kraken":
		return base + "USD"
	default:
		return base + "USDT"
	}
}

// priceKeys are the field names exchanges use for a last-trade price, in
// preference order.
var priceKeys = []string{"price", "last", "lastPrice", "c"}

// ExtractPrice walks a JSON payload for the first recognizable price field.
// Handles string and numeric values plus Kraken's ["price","lot"] arrays.
func ExtractPrice(raw []byte) (float64, bool) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, false
	}
	return walkPrice(doc, 0)
}

func walkPrice(node interface{}, depth int) (float64, bool) {
	if depth > 6 {
		return 0, false
	}
	switch v := node.(type) {
	case map[string]interface{}:
		for _, key := range priceKeys {
			if raw, ok := v[key]; ok {
				if f, ok := toFloat(raw); ok {
					return f, true
				}
			}
		}
		for _, child := range v {
			if f, ok := walkPrice(child, depth+1); ok {
				return f, true
			}
		}
	case []interface{}:
		for _, child := range v {
			if f, ok := walkPrice(child, depth+1); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, t > 0
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil && f > 0
	case []interface{}:
		if len(t) > 0 {
			return toFloat(t[0])
		}
	}
	return 0, false
}
