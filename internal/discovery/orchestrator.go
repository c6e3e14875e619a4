package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/strategy/catalog"
	"github.com/quantpulse/opportune/internal/strategy/scanners"
	"github.com/quantpulse/opportune/internal/universe"
)

// Hooks is the metrics surface the orchestrator reports to.
type Hooks interface {
	ScanStarted()
	ScanDuration(seconds float64)
	CacheHit()
	CacheMiss()
	ScannerError(strategy string)
	ScannerTimeout(strategy string)
	OpportunitiesFound(strategy string, n int)
	FallbackUsed(source string)
}

type noopHooks struct{}

func (noopHooks) ScanStarted()                   {}
func (noopHooks) ScanDuration(float64)           {}
func (noopHooks) CacheHit()                      {}
func (noopHooks) CacheMiss()                     {}
func (noopHooks) ScannerError(string)            {}
func (noopHooks) ScannerTimeout(string)          {}
func (noopHooks) OpportunitiesFound(string, int) {}
func (noopHooks) FallbackUsed(string)            {}

// PortfolioSource resolves user portfolios and provisions onboarding
// defaults.
type PortfolioSource interface {
	UserPortfolio(ctx context.Context, userID string) (*catalog.Portfolio, error)
	ProvisionDefaults(ctx context.Context, userID string) error
}

// UniverseSource serves the tiered universe.
type UniverseSource interface {
	Discover(ctx context.Context, minTier domain.Tier, exchangeIDs []string, forceRefresh bool) (*universe.Universe, error)
}

// ExchangeResolver resolves which exchanges a user's scan covers.
type ExchangeResolver interface {
	UserExchanges(ctx context.Context, userID string, requested, defaults []string) []string
}

// Preloader warms the price cache ahead of the fan-out.
type Preloader interface {
	Preload(ctx context.Context, exchanges, symbols []string) int
}

// Request is one discovery invocation.
type Request struct {
	UserID                 string `json:"user_id"`
	ForceRefresh           bool   `json:"force_refresh,omitempty"`
	IncludeRecommendations bool   `json:"include_strategy_recommendations,omitempty"`
}

// Orchestrator runs the scan pipeline.
type Orchestrator struct {
	portfolio PortfolioSource
	universe  UniverseSource
	exchanges ExchangeResolver
	preloader Preloader
	exec      scanners.Executor
	oppCache  *OpportunityCache
	fallback  *Fallback
	hooks     Hooks
	breaker   *gobreaker.CircuitBreaker
	progress  *ProgressBus
	cfg       config.DiscoveryConfig
	log       zerolog.Logger

	// lastPortfolio serves reads while the breaker is open.
	lastPortfolio sync.Map // userID -> *catalog.Portfolio

	cacheHits, cacheMisses int64
	statsMu                sync.Mutex
}

// NewOrchestrator wires the pipeline. hooks may be nil.
func NewOrchestrator(
	portfolio PortfolioSource,
	universeSrc UniverseSource,
	exchanges ExchangeResolver,
	preloader Preloader,
	exec scanners.Executor,
	oppCache *OpportunityCache,
	fallback *Fallback,
	hooks Hooks,
	progress *ProgressBus,
	cfg config.DiscoveryConfig,
	log zerolog.Logger,
) *Orchestrator {
	if hooks == nil {
		hooks = noopHooks{}
	}
	o := &Orchestrator{
		portfolio: portfolio,
		universe:  universeSrc,
		exchanges: exchanges,
		preloader: preloader,
		exec:      exec,
		oppCache:  oppCache,
		fallback:  fallback,
		hooks:     hooks,
		progress:  progress,
		cfg:       cfg,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
	o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "portfolio_fetch",
		Timeout: cfg.BreakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.log.Warn().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return o
}

// Discover runs the full pipeline for one user. It never returns nil and
// never panics out: catastrophic failures degrade through the fallback
// layer.
func (o *Orchestrator) Discover(ctx context.Context, req Request) (resp *Response) {
	scanID := uuid.New().String()
	start := time.Now()
	o.hooks.ScanStarted()
	defer func() {
		if r := recover(); r != nil {
			resp = o.fallback.Degrade(ctx, req.UserID, scanID, fmt.Errorf("panic: %v", r))
		}
		o.hooks.ScanDuration(time.Since(start).Seconds())
	}()
	o.publish(scanID, req.UserID, "pending", "scan accepted")

	// Portfolio and profile first: the cache key and fingerprint depend on
	// them.
	fetchStart := time.Now()
	pf := o.fetchPortfolio(ctx, req.UserID)
	portfolioMS := float64(time.Since(fetchStart).Milliseconds())
	profile := domain.BuildProfile(req.UserID, pf.StrategyIDs(), pf.TotalMonthlyCost)

	if !req.ForceRefresh {
		if cached, ok := o.oppCache.Read(ctx, profile); ok {
			o.hooks.CacheHit()
			o.recordCacheProbe(true)
			o.publish(scanID, req.UserID, "complete", "served from cache")
			cached.ScanID = scanID
			return cached
		}
	}
	o.hooks.CacheMiss()
	o.recordCacheProbe(false)

	// No-strategy shortcut with a single onboarding retry.
	if profile.ActiveStrategyCount == 0 {
		if err := o.portfolio.ProvisionDefaults(ctx, req.UserID); err != nil {
			o.log.Warn().Err(err).Str("user_id", req.UserID).Msg("onboarding provisioning failed")
		} else {
			pf = o.fetchPortfolio(ctx, req.UserID)
			profile = domain.BuildProfile(req.UserID, pf.StrategyIDs(), pf.TotalMonthlyCost)
		}
		if profile.ActiveStrategyCount == 0 {
			resp := o.emptyResponse(scanID, req.UserID, profile, pf, portfolioMS,
				"Activate strategies to start discovering opportunities")
			resp.StrategyRecommendations = o.recommendations(profile, pf, 0)
			o.oppCache.Write(ctx, profile, resp)
			o.publish(scanID, req.UserID, "complete", "no active strategies")
			return resp
		}
	}

	// Universe discovery at the user's tier ceiling.
	exchanges := o.exchanges.UserExchanges(ctx, req.UserID, nil, nil)
	u, err := o.universe.Discover(ctx, profile.MaxAssetTier, exchanges, req.ForceRefresh)
	if err != nil || u == nil || u.TotalAssets == 0 {
		resp := o.emptyResponse(scanID, req.UserID, profile, pf, portfolioMS, "")
		resp.Success = false
		resp.Error = "No tradeable assets found"
		o.publish(scanID, req.UserID, "complete", "universe empty")
		return resp
	}
	o.publish(scanID, req.UserID, "partial", fmt.Sprintf("universe ready: %d assets", u.TotalAssets))

	// Price pre-warm, best effort.
	if o.preloader != nil {
		var symbols []string
		for _, a := range u.TopByVolume(o.cfg.PreloadBatchSize) {
			symbols = append(symbols, a.Symbol)
		}
		o.preloader.Preload(ctx, exchanges, symbols)
	}

	// Scanner fan-out.
	gathered, stats := o.fanOut(ctx, scanID, profile, pf, u)

	// Merge and rank: profit weighted by confidence, stable, truncated to
	// the profile's scan limit.
	sort.SliceStable(gathered, func(i, j int) bool {
		return gathered[i].RankScore() > gathered[j].RankScore()
	})
	analysis := buildSignalAnalysis(gathered, profile.OpportunityScanLimit)
	shown := gathered
	if len(shown) > profile.OpportunityScanLimit {
		shown = shown[:profile.OpportunityScanLimit]
	}

	scanState := "complete"
	if stats.timeouts > 0 || stats.errors > 0 {
		scanState = "partial"
	}
	resp = &Response{
		Success:            true,
		ScanID:             scanID,
		UserID:             req.UserID,
		Opportunities:      shown,
		TotalOpportunities: len(shown),
		SignalAnalysis:     analysis,
		ThresholdTransparency: ThresholdTransparency{
			Message:        fmt.Sprintf("%d signals cleared your strategies' inclusion thresholds", analysis.TotalSignalsAnalyzed),
			Recommendation: "Strong signals carry the highest conviction; review risk levels before acting",
		},
		UserProfile:         profileView(profile, pf),
		StrategyPerformance: stats.perStrategy,
		AssetDiscovery: AssetDiscovery{
			TotalAssetsScanned: u.TotalAssets,
			AssetTiers:         tierCounts(u),
			MaxTierAccessed:    string(profile.MaxAssetTier),
		},
		ExecutionTimeMS: float64(time.Since(start).Milliseconds()),
		LastUpdated:     time.Now().UTC(),
		PerformanceMetrics: PerformanceMetrics{
			PortfolioFetchTimeMS: portfolioMS,
			CacheHitRate:         o.cacheHitRate(),
			TotalTimeouts:        stats.timeouts,
			TotalErrors:          stats.errors,
		},
		Metadata: map[string]interface{}{"scan_state": scanState},
	}
	if req.IncludeRecommendations && len(shown) < 10 {
		resp.StrategyRecommendations = o.recommendations(profile, pf, len(shown))
	}

	profile.LastScanTime = time.Now().UTC()
	o.oppCache.Write(ctx, profile, resp)
	o.publish(scanID, req.UserID, scanState, fmt.Sprintf("%d opportunities", len(shown)))
	return resp
}

// fetchPortfolio resolves the user portfolio behind the circuit breaker and
// the hard timeout. Failures fall back to the last known portfolio, then to
// an empty shell.
func (o *Orchestrator) fetchPortfolio(ctx context.Context, userID string) *catalog.Portfolio {
	result, err := o.breaker.Execute(func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.PortfolioFetchTimeout)
		defer cancel()
		return o.portfolio.UserPortfolio(fetchCtx, userID)
	})
	if err == nil {
		pf := result.(*catalog.Portfolio)
		o.lastPortfolio.Store(userID, pf)
		return pf
	}

	o.log.Warn().Err(err).Str("user_id", userID).Msg("portfolio fetch failed")
	if cached, ok := o.lastPortfolio.Load(userID); ok {
		return cached.(*catalog.Portfolio)
	}
	return &catalog.Portfolio{Success: false, UserID: userID, ActiveStrategies: []catalog.ActiveStrategy{}}
}

type fanOutStats struct {
	perStrategy map[string]StrategyScanStats
	errors      int
	timeouts    int
}

// fanOut runs one scanner per active strategy under the global semaphore,
// each with its own stage timeout. Task failures are recorded, never fatal.
func (o *Orchestrator) fanOut(ctx context.Context, scanID string, profile *domain.UserOpportunityProfile, pf *catalog.Portfolio, u *universe.Universe) ([]domain.Opportunity, fanOutStats) {
	owned := make(map[string]bool, len(pf.ActiveStrategies))
	for _, s := range pf.ActiveStrategies {
		owned[s.StrategyID] = true
	}
	sc := scanners.ScanContext{
		UserID:   profile.UserID,
		Universe: u,
		MaxTier:  profile.MaxAssetTier,
		Owned:    owned,
	}
	stageTimeout := o.cfg.StageTimeout(o.cfg.WorkerBudget)

	type result struct {
		strategy string
		opps     []domain.Opportunity
		err      error
		timedOut bool
	}
	results := make([]result, len(pf.ActiveStrategies))

	sem := make(chan struct{}, o.cfg.ScannerSemaphore)
	var wg sync.WaitGroup
dispatch:
	for i, s := range pf.ActiveStrategies {
		scanner, ok := scanners.ForStrategy(s.StrategyID, o.exec, o.log)
		if !ok {
			o.log.Warn().Str("strategy", s.StrategyID).Msg("no scanner for strategy")
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(i int, strategyID string, scanner scanners.Scanner) {
			defer wg.Done()
			defer func() { <-sem }()

			stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
			defer cancel()

			opps, err := scanner.Scan(stageCtx, sc)
			results[i] = result{
				strategy: strategyID,
				opps:     opps,
				err:      err,
				timedOut: stageCtx.Err() == context.DeadlineExceeded,
			}
		}(i, s.StrategyID, scanner)
	}
	wg.Wait()

	stats := fanOutStats{perStrategy: make(map[string]StrategyScanStats)}
	var gathered []domain.Opportunity
	for _, r := range results {
		if r.strategy == "" {
			continue
		}
		switch {
		case r.timedOut:
			stats.timeouts++
			o.hooks.ScannerTimeout(r.strategy)
			o.log.Warn().Str("strategy", r.strategy).Str("scan_id", scanID).Msg("scanner stage timed out")
		case r.err != nil:
			stats.errors++
			o.hooks.ScannerError(r.strategy)
			o.log.Warn().Err(r.err).Str("strategy", r.strategy).Str("scan_id", scanID).Msg("scanner failed")
		}
		o.hooks.OpportunitiesFound(r.strategy, len(r.opps))

		entry := stats.perStrategy[r.strategy]
		for _, opp := range r.opps {
			entry.Count++
			entry.TotalPotential += opp.ProfitPotentialUSD
			entry.AvgConfidence += opp.ConfidenceScore
		}
		if entry.Count > 0 {
			entry.AvgConfidence /= float64(entry.Count)
		}
		stats.perStrategy[r.strategy] = entry
		gathered = append(gathered, r.opps...)
	}
	return gathered, stats
}

// recommendations suggests up to three catalog strategies the user does not
// own, plus a tier upgrade for basic users.
func (o *Orchestrator) recommendations(profile *domain.UserOpportunityProfile, pf *catalog.Portfolio, shown int) []Recommendation {
	owned := make(map[string]bool, len(pf.ActiveStrategies))
	for _, s := range pf.ActiveStrategies {
		owned[s.StrategyID] = true
	}

	// Free defaults lead so new users see a zero-cost path first.
	candidates := append(catalog.DefaultFreeStrategies(), catalog.IDs()...)
	seen := make(map[string]bool, len(candidates))
	var out []Recommendation
	for _, id := range candidates {
		if len(out) >= 3 {
			break
		}
		if owned[id] || seen[id] {
			continue
		}
		seen[id] = true
		meta, _ := catalog.Get(id)
		reason := "Broadens your scan coverage"
		if shown < 5 {
			reason = "Few opportunities matched your current strategies"
		}
		out = append(out, Recommendation{
			StrategyID: meta.ID,
			Name:       meta.Name,
			Benefit:    meta.Benefit,
			Reason:     reason,
			Type:       "strategy",
		})
	}
	if profile.UserTier == domain.UserTierBasic {
		out = append(out, Recommendation{
			Name:    "Pro tier",
			Benefit: "Unlocks professional-tier assets and a 200-opportunity scan limit",
			Reason:  "Your tier caps scans at retail assets",
			Type:    "tier_upgrade",
		})
	}
	return out
}

func (o *Orchestrator) emptyResponse(scanID, userID string, profile *domain.UserOpportunityProfile, pf *catalog.Portfolio, portfolioMS float64, guidance string) *Response {
	resp := &Response{
		Success:             true,
		ScanID:              scanID,
		UserID:              userID,
		Opportunities:       []domain.Opportunity{},
		TotalOpportunities:  0,
		UserProfile:         profileView(profile, pf),
		StrategyPerformance: map[string]StrategyScanStats{},
		LastUpdated:         time.Now().UTC(),
		PerformanceMetrics: PerformanceMetrics{
			PortfolioFetchTimeMS: portfolioMS,
			CacheHitRate:         o.cacheHitRate(),
		},
		Metadata: map[string]interface{}{"scan_state": "complete"},
	}
	if guidance != "" {
		resp.Metadata["guidance"] = guidance
	}
	return resp
}

func (o *Orchestrator) publish(scanID, userID, state, detail string) {
	if o.progress != nil {
		o.progress.Publish(ProgressEvent{
			ScanID:    scanID,
			UserID:    userID,
			Stage:     state,
			Detail:    detail,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (o *Orchestrator) recordCacheProbe(hit bool) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	if hit {
		o.cacheHits++
	} else {
		o.cacheMisses++
	}
}

func (o *Orchestrator) cacheHitRate() float64 {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	total := o.cacheHits + o.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(o.cacheHits) / float64(total)
}

func profileView(p *domain.UserOpportunityProfile, pf *catalog.Portfolio) UserProfileView {
	ids := pf.StrategyIDs()
	if ids == nil {
		ids = []string{}
	}
	return UserProfileView{
		ActiveStrategies:    ids,
		ActiveStrategyCount: p.ActiveStrategyCount,
		UserTier:            string(p.UserTier),
		MonthlyStrategyCost: p.TotalMonthlyStrategyCost,
		ScanLimit:           p.OpportunityScanLimit,
		StrategyFingerprint: p.StrategyFingerprint,
	}
}

// buildSignalAnalysis buckets signal strengths and explains the display
// threshold against the legacy 6.0 bar.
func buildSignalAnalysis(gathered []domain.Opportunity, limit int) SignalAnalysis {
	const originalThreshold = 6.0

	var buckets SignalsByStrength
	aboveOriginal := 0
	for _, opp := range gathered {
		strength, _ := opp.Metadata["signal_strength"].(float64)
		switch {
		case strength > 7:
			buckets.VeryStrong++
		case strength > 5:
			buckets.Strong++
		case strength > 3:
			buckets.Moderate++
		default:
			buckets.Weak++
		}
		if strength >= originalThreshold {
			aboveOriginal++
		}
	}

	shown := len(gathered)
	if shown > limit {
		shown = limit
	}
	revealed := shown - aboveOriginal
	if revealed < 0 {
		revealed = 0
	}
	return SignalAnalysis{
		TotalSignalsAnalyzed: len(gathered),
		SignalsByStrength:    buckets,
		ThresholdAnalysis: ThresholdAnalysis{
			OriginalThreshold:               originalThreshold,
			OpportunitiesAboveOriginal:      aboveOriginal,
			OpportunitiesShown:              shown,
			AdditionalOpportunitiesRevealed: revealed,
		},
	}
}

func tierCounts(u *universe.Universe) map[string]int {
	out := make(map[string]int, len(u.Tiers))
	for tier, assets := range u.Tiers {
		if len(assets) > 0 {
			out[string(tier)] = len(assets)
		}
	}
	return out
}
