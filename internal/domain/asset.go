package domain

import "time"

// AssetType distinguishes the market a ticker feed covers.
type AssetType string

const (
	AssetTypeSpot    AssetType = "spot"
	AssetTypeFutures AssetType = "futures"
)

// Asset is a normalized tradeable instrument identified by (Symbol, Exchange).
// Assets are mutable only during the classification pass of a single
// discovery run and immutable after publication.
type Asset struct {
	Symbol       string             `json:"symbol"`
	Exchange     string             `json:"exchange"`
	Quote        string             `json:"quote_currency"`
	PriceUSD     float64            `json:"price_usd"`
	Volume24hUSD float64            `json:"volume_24h_usd"`
	MarketCapUSD float64            `json:"market_cap_usd,omitempty"`
	Metadata     map[string]float64 `json:"metadata,omitempty"`
	LastUpdated  time.Time          `json:"last_updated"`
	Tier         Tier               `json:"tier,omitempty"`
}

// Valid reports whether the asset satisfies the parser invariants:
// non-empty symbol, positive price, non-negative volume.
func (a Asset) Valid() bool {
	return a.Symbol != "" && a.PriceUSD > 0 && a.Volume24hUSD >= 0
}
