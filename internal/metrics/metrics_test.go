package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			if m.GetHistogram() != nil {
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == key && l.GetValue() == value {
			return true
		}
	}
	return false
}

func TestTickerMetrics(t *testing.T) {
	c := New()
	c.RateLimitSkip("binance")
	c.FetchError("kraken")
	c.TickersFetched("binance", 120)
	c.TickersFetched("binance", 30)

	assert.Equal(t, 1.0, gatherValue(t, c, "opportune_exchange_rate_limit_skips_total", map[string]string{"exchange": "binance"}))
	assert.Equal(t, 1.0, gatherValue(t, c, "opportune_exchange_fetch_errors_total", map[string]string{"exchange": "kraken"}))
	assert.Equal(t, 150.0, gatherValue(t, c, "opportune_exchange_tickers_fetched_total", map[string]string{"exchange": "binance"}))
}

func TestScanMetrics(t *testing.T) {
	c := New()
	c.ScanStarted()
	c.ScanStarted()
	c.ScanDuration(1.5)
	c.CacheHit()
	c.CacheMiss()
	c.ScannerError("pairs_trading")
	c.ScannerTimeout("options_trade")
	c.OpportunitiesFound("spot_momentum_strategy", 7)
	c.OpportunitiesFound("spot_momentum_strategy", 0) // no-op
	c.FallbackUsed("cached_fallback")

	assert.Equal(t, 2.0, gatherValue(t, c, "opportune_scans_started_total", nil))
	assert.Equal(t, 1.0, gatherValue(t, c, "opportune_scan_duration_seconds", nil))
	assert.Equal(t, 1.0, gatherValue(t, c, "opportune_opportunity_cache_hits_total", nil))
	assert.Equal(t, 7.0, gatherValue(t, c, "opportune_opportunities_found_total", map[string]string{"strategy": "spot_momentum_strategy"}))
	assert.Equal(t, 1.0, gatherValue(t, c, "opportune_fallbacks_total", map[string]string{"source": "cached_fallback"}))
}

func TestHandlerServes(t *testing.T) {
	c := New()
	assert.NotNil(t, c.Handler())
}
