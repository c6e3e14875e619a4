// Package tickers ingests exchange ticker feeds and normalizes them into
// assets. One parser per upstream payload shape; a registry maps descriptor
// parser keys to parsers.
package tickers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantpulse/opportune/internal/domain"
)

// ParseFunc decodes one exchange's ticker payload into assets keyed by base
// symbol. Parsers discard entries with non-positive price or volume and
// never fabricate data.
type ParseFunc func(exchange string, raw []byte) (map[string]domain.Asset, error)

var parsers = map[string]ParseFunc{
	"binance":  parseBinance,
	"kraken":   parseKraken,
	"kucoin":   parseKucoin,
	"coinbase": parseCoinbase,
	"okx":      parseOKX,
	"bybit":    parseBybit,
	"gateio":   parseGateio,
	"generic":  parseGeneric,
}

// Lookup returns the parser registered under key.
func Lookup(key string) (ParseFunc, bool) {
	p, ok := parsers[key]
	return p, ok
}

func f(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// keep records an asset when it passes the shared invariants, preferring the
// higher-volume quote when a base symbol appears under several quotes.
func keep(out map[string]domain.Asset, exchange, pair string, price, quoteVolUSD float64, meta map[string]float64) {
	base, quote, ok := NormalizeSymbol(pair)
	if !ok || price <= 0 || quoteVolUSD <= 0 {
		return
	}
	if !IsUSDQuote(quote) {
		// Non-USD quotes need a conversion leg we don't carry; skip rather
		// than guess.
		return
	}
	asset := domain.Asset{
		Symbol:       base,
		Exchange:     exchange,
		Quote:        quote,
		PriceUSD:     price,
		Volume24hUSD: quoteVolUSD,
		Metadata:     meta,
		LastUpdated:  time.Now().UTC(),
	}
	if prev, exists := out[base]; exists && prev.Volume24hUSD >= asset.Volume24hUSD {
		return
	}
	out[base] = asset
}

func parseBinance(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var rows []struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		QuoteVolume        string `json:"quoteVolume"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		LastFundingRate    string `json:"lastFundingRate"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("binance payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(rows))
	for _, r := range rows {
		meta := map[string]float64{
			"high_24h":       f(r.HighPrice),
			"low_24h":        f(r.LowPrice),
			"change_pct_24h": f(r.PriceChangePercent),
		}
		if r.LastFundingRate != "" {
			meta["funding_rate"] = f(r.LastFundingRate)
		}
		keep(out, exchange, r.Symbol, f(r.LastPrice), f(r.QuoteVolume), meta)
	}
	return out, nil
}

func parseKraken(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var payload struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			C []string `json:"c"` // last trade [price, lot]
			V []string `json:"v"` // volume [today, 24h], base units
			H []string `json:"h"`
			L []string `json:"l"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("kraken payload: %w", err)
	}
	if len(payload.Error) > 0 {
		return nil, fmt.Errorf("kraken error: %s", payload.Error[0])
	}

	out := make(map[string]domain.Asset, len(payload.Result))
	for pair, t := range payload.Result {
		if len(t.C) == 0 || len(t.V) < 2 {
			continue
		}
		price := f(t.C[0])
		volUSD := f(t.V[1]) * price // base volume to quote terms
		meta := map[string]float64{}
		if len(t.H) > 1 {
			meta["high_24h"] = f(t.H[1])
		}
		if len(t.L) > 1 {
			meta["low_24h"] = f(t.L[1])
		}
		keep(out, exchange, normalizeKrakenPair(pair), price, volUSD, meta)
	}
	return out, nil
}

// normalizeKrakenPair maps Kraken's legacy pair spellings (XXBTZUSD,
// XETHZUSD) to conventional base/quote concatenations.
func normalizeKrakenPair(pair string) string {
	replacements := []struct{ from, to string }{
		{"XXBT", "BTC"}, {"XBT", "BTC"}, {"XETH", "ETH"}, {"XXDG", "DOGE"},
		{"ZUSD", "USD"}, {"ZEUR", "EUR"},
	}
	out := pair
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r.from, r.to)
	}
	return out
}

func parseKucoin(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var payload struct {
		Data struct {
			Ticker []struct {
				Symbol     string `json:"symbol"` // BTC-USDT
				Last       string `json:"last"`
				VolValue   string `json:"volValue"` // quote volume
				High       string `json:"high"`
				Low        string `json:"low"`
				ChangeRate string `json:"changeRate"`
			} `json:"ticker"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("kucoin payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(payload.Data.Ticker))
	for _, t := range payload.Data.Ticker {
		meta := map[string]float64{
			"high_24h":       f(t.High),
			"low_24h":        f(t.Low),
			"change_pct_24h": f(t.ChangeRate) * 100,
		}
		keep(out, exchange, t.Symbol, f(t.Last), f(t.VolValue), meta)
	}
	return out, nil
}

func parseCoinbase(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var payload map[string]struct {
		Stats24h struct {
			Last   string `json:"last"`
			Volume string `json:"volume"` // base units
			High   string `json:"high"`
			Low    string `json:"low"`
		} `json:"stats_24hour"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("coinbase payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(payload))
	for pair, s := range payload {
		price := f(s.Stats24h.Last)
		volUSD := f(s.Stats24h.Volume) * price
		meta := map[string]float64{
			"high_24h": f(s.Stats24h.High),
			"low_24h":  f(s.Stats24h.Low),
		}
		keep(out, exchange, pair, price, volUSD, meta)
	}
	return out, nil
}

func parseOKX(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var payload struct {
		Data []struct {
			InstID   string `json:"instId"` // BTC-USDT or BTC-USDT-SWAP
			Last     string `json:"last"`
			VolCcy   string `json:"volCcy24h"` // quote volume for spot
			High24h  string `json:"high24h"`
			Low24h   string `json:"low24h"`
			FundRate string `json:"fundingRate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("okx payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(payload.Data))
	for _, t := range payload.Data {
		pair := strings.TrimSuffix(t.InstID, "-SWAP")
		meta := map[string]float64{
			"high_24h": f(t.High24h),
			"low_24h":  f(t.Low24h),
		}
		if t.FundRate != "" {
			meta["funding_rate"] = f(t.FundRate)
		}
		keep(out, exchange, pair, f(t.Last), f(t.VolCcy), meta)
	}
	return out, nil
}

func parseBybit(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var payload struct {
		Result struct {
			List []struct {
				Symbol       string `json:"symbol"`
				LastPrice    string `json:"lastPrice"`
				Turnover24h  string `json:"turnover24h"` // quote volume
				HighPrice24h string `json:"highPrice24h"`
				LowPrice24h  string `json:"lowPrice24h"`
				Price24hPcnt string `json:"price24hPcnt"`
				FundingRate  string `json:"fundingRate"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("bybit payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(payload.Result.List))
	for _, t := range payload.Result.List {
		meta := map[string]float64{
			"high_24h":       f(t.HighPrice24h),
			"low_24h":        f(t.LowPrice24h),
			"change_pct_24h": f(t.Price24hPcnt) * 100,
		}
		if t.FundingRate != "" {
			meta["funding_rate"] = f(t.FundingRate)
		}
		keep(out, exchange, t.Symbol, f(t.LastPrice), f(t.Turnover24h), meta)
	}
	return out, nil
}

func parseGateio(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var rows []struct {
		CurrencyPair     string `json:"currency_pair"` // BTC_USDT
		Last             string `json:"last"`
		QuoteVolume      string `json:"quote_volume"`
		High24h          string `json:"high_24h"`
		Low24h           string `json:"low_24h"`
		ChangePercentage string `json:"change_percentage"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("gateio payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(rows))
	for _, t := range rows {
		meta := map[string]float64{
			"high_24h":       f(t.High24h),
			"low_24h":        f(t.Low24h),
			"change_pct_24h": f(t.ChangePercentage),
		}
		keep(out, exchange, t.CurrencyPair, f(t.Last), f(t.QuoteVolume), meta)
	}
	return out, nil
}

// parseGeneric handles dynamically discovered exchanges exposing a flat
// ticker array with conventional key names.
func parseGeneric(exchange string, raw []byte) (map[string]domain.Asset, error) {
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("generic payload: %w", err)
	}

	out := make(map[string]domain.Asset, len(rows))
	for _, row := range rows {
		pair := str(row, "symbol", "pair", "currency_pair")
		price := num(row, "price", "last", "lastPrice")
		vol := num(row, "quote_volume", "quoteVolume", "volume_usd", "turnover24h")
		keep(out, exchange, pair, price, vol, nil)
	}
	return out, nil
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func num(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			if v != 0 {
				return v
			}
		case string:
			if n := f(v); n != 0 {
				return n
			}
		}
	}
	return 0
}
