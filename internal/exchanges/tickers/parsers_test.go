package tickers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		pair  string
		base  string
		quote string
		ok    bool
	}{
		{"BTCUSDT", "BTC", "USDT", true},
		{"ETHBUSD", "ETH", "BUSD", true},
		{"SOLUSDC", "SOL", "USDC", true},
		{"ADABTC", "ADA", "BTC", true},
		{"DOGEEUR", "DOGE", "EUR", true},
		{"BTC-USDT", "BTC", "USDT", true},
		{"BTC_USDT", "BTC", "USDT", true},
		{"BTC/USD", "BTC", "USD", true},
		{"TUSDT", "", "", false},    // base would be 1 char
		{"USDT", "", "", false},     // nothing left after strip
		{"WEIRDPAIR", "", "", false}, // no known quote
		{"", "", "", false},
	}
	for _, c := range cases {
		base, quote, ok := NormalizeSymbol(c.pair)
		assert.Equal(t, c.ok, ok, "pair %q", c.pair)
		if c.ok {
			assert.Equal(t, c.base, base, "pair %q", c.pair)
			assert.Equal(t, c.quote, quote, "pair %q", c.pair)
		}
	}
}

func TestParseBinance(t *testing.T) {
	raw := []byte(`[
		{"symbol":"BTCUSDT","lastPrice":"50000","quoteVolume":"2000000","highPrice":"51000","lowPrice":"49000","priceChangePercent":"1.5"},
		{"symbol":"ETHUSDT","lastPrice":"3000","quoteVolume":"1500000","highPrice":"3100","lowPrice":"2900","priceChangePercent":"-0.4"},
		{"symbol":"ZEROUSDT","lastPrice":"0","quoteVolume":"100"},
		{"symbol":"NOVOLUSDT","lastPrice":"10","quoteVolume":"0"},
		{"symbol":"ADABTC","lastPrice":"0.00001","quoteVolume":"500"}
	]`)

	assets, err := parseBinance("binance", raw)
	require.NoError(t, err)
	require.Len(t, assets, 2, "zero-price, zero-volume, and non-USD-quote rows are discarded")

	btc := assets["BTC"]
	assert.Equal(t, "binance", btc.Exchange)
	assert.Equal(t, "USDT", btc.Quote)
	assert.Equal(t, 50000.0, btc.PriceUSD)
	assert.Equal(t, 2000000.0, btc.Volume24hUSD)
	assert.Equal(t, 51000.0, btc.Metadata["high_24h"])
	assert.Equal(t, 1.5, btc.Metadata["change_pct_24h"])
	assert.True(t, btc.Valid())
}

func TestParseKraken(t *testing.T) {
	raw := []byte(`{
		"error":[],
		"result":{
			"XXBTZUSD":{"c":["50000.1","0.01"],"v":["10.5","40.0"],"h":["50500","51000"],"l":["49000","48500"]},
			"XETHZUSD":{"c":["3000.0","0.2"],"v":["100","500"],"h":["3050","3100"],"l":["2900","2850"]}
		}
	}`)

	assets, err := parseKraken("kraken", raw)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	btc := assets["BTC"]
	assert.Equal(t, 50000.1, btc.PriceUSD)
	assert.InDelta(t, 40.0*50000.1, btc.Volume24hUSD, 0.01, "base volume converted to USD")
	assert.Equal(t, 51000.0, btc.Metadata["high_24h"])
}

func TestParseKrakenError(t *testing.T) {
	_, err := parseKraken("kraken", []byte(`{"error":["EGeneral:Invalid arguments"],"result":{}}`))
	assert.Error(t, err)
}

func TestParseKucoin(t *testing.T) {
	raw := []byte(`{"data":{"ticker":[
		{"symbol":"BTC-USDT","last":"50000","volValue":"900000","high":"50500","low":"49500","changeRate":"0.012"}
	]}}`)

	assets, err := parseKucoin("kucoin", raw)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.InDelta(t, 1.2, assets["BTC"].Metadata["change_pct_24h"], 0.001)
}

func TestParseOKX(t *testing.T) {
	raw := []byte(`{"data":[
		{"instId":"BTC-USDT","last":"50000","volCcy24h":"3000000","high24h":"50500","low24h":"49500"},
		{"instId":"ETH-USDT-SWAP","last":"3000","volCcy24h":"800000","high24h":"3100","low24h":"2900","fundingRate":"0.0001"}
	]}`)

	assets, err := parseOKX("okx", raw)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, 0.0001, assets["ETH"].Metadata["funding_rate"], "funding rate preserved for swaps")
}

func TestParseBybit(t *testing.T) {
	raw := []byte(`{"result":{"list":[
		{"symbol":"BTCUSDT","lastPrice":"50000","turnover24h":"5000000","highPrice24h":"50500","lowPrice24h":"49500","price24hPcnt":"0.02"}
	]}}`)

	assets, err := parseBybit("bybit", raw)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.InDelta(t, 2.0, assets["BTC"].Metadata["change_pct_24h"], 0.001)
}

func TestParseGateio(t *testing.T) {
	raw := []byte(`[
		{"currency_pair":"BTC_USDT","last":"50000","quote_volume":"1200000","high_24h":"50500","low_24h":"49500","change_percentage":"1.1"}
	]`)

	assets, err := parseGateio("gateio", raw)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "BTC", assets["BTC"].Symbol)
}

func TestParseCoinbase(t *testing.T) {
	raw := []byte(`{
		"BTC-USD":{"stats_24hour":{"last":"50000","volume":"20","high":"50500","low":"49500"}}
	}`)

	assets, err := parseCoinbase("coinbase", raw)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.InDelta(t, 1000000.0, assets["BTC"].Volume24hUSD, 0.01)
}

func TestParseGeneric(t *testing.T) {
	raw := []byte(`[
		{"symbol":"BTC-USDT","last":"50000","quote_volume":"100000"},
		{"pair":"ETHUSDT","price":3000.5,"turnover24h":"50000"}
	]`)

	assets, err := parseGeneric("newex", raw)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, 3000.5, assets["ETH"].PriceUSD)
}

func TestKeepPrefersHigherVolumeQuote(t *testing.T) {
	raw := []byte(`[
		{"symbol":"BTCUSDT","lastPrice":"50000","quoteVolume":"2000000"},
		{"symbol":"BTCUSDC","lastPrice":"50010","quoteVolume":"3000000"}
	]`)
	assets, err := parseBinance("binance", raw)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "USDC", assets["BTC"].Quote, "higher-volume quote wins")
}
