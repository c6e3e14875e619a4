// Package metrics exposes Prometheus instrumentation for the discovery
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles every engine metric behind one registry.
type Collector struct {
	registry *prometheus.Registry

	rateLimitSkips *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	tickersFetched *prometheus.CounterVec

	scansStarted   prometheus.Counter
	scanDuration   prometheus.Histogram
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	scannerErrors  *prometheus.CounterVec
	scannerTimeout *prometheus.CounterVec
	opportunities  *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
}

// New registers the engine metric set on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rateLimitSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_exchange_rate_limit_skips_total",
			Help: "Ticker fetches skipped because an exchange was rate limited.",
		}, []string{"exchange"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_exchange_fetch_errors_total",
			Help: "Ticker fetches that failed.",
		}, []string{"exchange"}),
		tickersFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_exchange_tickers_fetched_total",
			Help: "Assets parsed from exchange ticker feeds.",
		}, []string{"exchange"}),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opportune_scans_started_total",
			Help: "Opportunity scans started.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opportune_scan_duration_seconds",
			Help:    "End-to-end opportunity scan duration.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opportune_opportunity_cache_hits_total",
			Help: "Scans answered from the opportunity cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opportune_opportunity_cache_misses_total",
			Help: "Scans that had to run the full pipeline.",
		}),
		scannerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_scanner_errors_total",
			Help: "Scanner tasks that failed.",
		}, []string{"strategy"}),
		scannerTimeout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_scanner_timeouts_total",
			Help: "Scanner tasks cancelled by the stage timeout.",
		}, []string{"strategy"}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_opportunities_found_total",
			Help: "Opportunities emitted, per strategy.",
		}, []string{"strategy"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opportune_fallbacks_total",
			Help: "Degraded responses served, per fallback source.",
		}, []string{"source"}),
	}
	c.registry.MustRegister(
		c.rateLimitSkips, c.fetchErrors, c.tickersFetched,
		c.scansStarted, c.scanDuration, c.cacheHits, c.cacheMisses,
		c.scannerErrors, c.scannerTimeout, c.opportunities, c.fallbacks,
	)
	return c
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// tickers.Metrics implementation.

func (c *Collector) RateLimitSkip(exchange string) {
	c.rateLimitSkips.WithLabelValues(exchange).Inc()
}

func (c *Collector) FetchError(exchange string) {
	c.fetchErrors.WithLabelValues(exchange).Inc()
}

func (c *Collector) TickersFetched(exchange string, n int) {
	c.tickersFetched.WithLabelValues(exchange).Add(float64(n))
}

// Orchestrator hooks.

func (c *Collector) ScanStarted() { c.scansStarted.Inc() }

func (c *Collector) ScanDuration(seconds float64) { c.scanDuration.Observe(seconds) }

func (c *Collector) CacheHit() { c.cacheHits.Inc() }

func (c *Collector) CacheMiss() { c.cacheMisses.Inc() }

func (c *Collector) ScannerError(strategy string) {
	c.scannerErrors.WithLabelValues(strategy).Inc()
}

func (c *Collector) ScannerTimeout(strategy string) {
	c.scannerTimeout.WithLabelValues(strategy).Inc()
}

func (c *Collector) OpportunitiesFound(strategy string, n int) {
	if n > 0 {
		c.opportunities.WithLabelValues(strategy).Add(float64(n))
	}
}

func (c *Collector) FallbackUsed(source string) {
	c.fallbacks.WithLabelValues(source).Inc()
}
