package domain

// Capability flags an exchange feature relevant to strategy routing.
type Capability string

const (
	CapSpotTrading      Capability = "spot_trading"
	CapFuturesTrading   Capability = "futures_trading"
	CapOptionsTrading   Capability = "options_trading"
	CapMarginTrading    Capability = "margin_trading"
	CapOrderBook        Capability = "order_book"
	CapWebsocketStreams Capability = "websocket_streams"
	CapTradingHistory   Capability = "trading_history"
)

// ExchangeDescriptor describes one venue: where its ticker feeds live, which
// parser decodes them, and how hard we may hit it.
type ExchangeDescriptor struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	SpotTickerURL      string       `json:"spot_ticker_url,omitempty" yaml:"spot_ticker_url"`
	FuturesTickerURL   string       `json:"futures_ticker_url,omitempty" yaml:"futures_ticker_url"`
	PriceURLTemplate   string       `json:"price_url_template,omitempty" yaml:"price_url_template"`
	ParserKey          string       `json:"parser_key" yaml:"parser_key"`
	RateLimitPerMinute int          `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	Capabilities       []Capability `json:"capabilities,omitempty" yaml:"capabilities"`
	Priority           int          `json:"priority" yaml:"priority"`
}

// Valid reports whether the descriptor can participate in discovery:
// at least one ticker feed URL must be populated.
func (d ExchangeDescriptor) Valid() bool {
	return d.ID != "" && (d.SpotTickerURL != "" || d.FuturesTickerURL != "")
}

// Has reports whether the descriptor carries the capability.
func (d ExchangeDescriptor) Has(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// TickerURL returns the feed URL for the given market, empty if unsupported.
func (d ExchangeDescriptor) TickerURL(t AssetType) string {
	if t == AssetTypeFutures {
		return d.FuturesTickerURL
	}
	return d.SpotTickerURL
}
