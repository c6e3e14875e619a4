package scanners

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/strategy/router"
)

// scannerMeta is the per-strategy tuning: symbol budget, tier floor,
// internal concurrency, and inclusion thresholds.
type scannerMeta struct {
	id               string
	name             string
	opportunityType  string
	timeframe        string
	maxSymbols       int
	concurrency      int
	// tierCeiling restricts the scanner to assets at or above this tier;
	// zero value means the user's own ceiling applies.
	tierCeiling      domain.Tier
	minStrength      float64
	considerStrength float64
	strongStrength   float64
}

// selectAssets picks the scanner's symbol set: the universe's top assets by
// volume, restricted to the scanner's own tier ceiling. The universe arrives
// already filtered to the user's access tier, so the ceiling only tightens it.
// A ceiling that empties the selection falls back to the unrestricted set, so
// thin universes still get scanned.
func selectAssets(sc ScanContext, meta scannerMeta) []domain.Asset {
	if meta.tierCeiling != "" {
		if out := assetsWithin(sc, meta.tierCeiling, meta.maxSymbols); len(out) > 0 {
			return out
		}
	}
	return assetsWithin(sc, domain.TierAny, meta.maxSymbols)
}

func assetsWithin(sc ScanContext, ceiling domain.Tier, limit int) []domain.Asset {
	var out []domain.Asset
	for _, a := range sc.Universe.TopByVolume(0) {
		if a.Tier.Priority() > ceiling.Priority() {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// assetParams forwards the classified asset's market context to the backend.
func assetParams(a domain.Asset, notional float64) map[string]interface{} {
	params := map[string]interface{}{
		"current_price":  a.PriceUSD,
		"volume_24h_usd": a.Volume24hUSD,
		"notional":       notional,
	}
	for key, v := range a.Metadata {
		params[key] = v
	}
	return params
}

// symbolScanner is the shared template: fan out one router call per symbol
// under a bounded semaphore, convert envelopes to opportunities, preserve
// symbol order.
type symbolScanner struct {
	meta scannerMeta
	exec Executor
	log  zerolog.Logger
	// extraParams contributes strategy-specific parameters computed from
	// the full selection (basket statistics and the like).
	extraParams func(selected []domain.Asset, a domain.Asset) map[string]interface{}
}

func (s *symbolScanner) StrategyID() string { return s.meta.id }

func (s *symbolScanner) Scan(ctx context.Context, sc ScanContext) ([]domain.Opportunity, error) {
	if !sc.Owned[s.meta.id] {
		return nil, nil
	}
	assets := selectAssets(sc, s.meta)
	if len(assets) == 0 {
		return nil, nil
	}

	results := make([]*domain.Opportunity, len(assets))
	sem := make(chan struct{}, s.meta.concurrency)
	var wg sync.WaitGroup

	for i, a := range assets {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return collect(results), ctx.Err()
		}
		wg.Add(1)
		go func(i int, a domain.Asset) {
			defer wg.Done()
			defer func() { <-sem }()

			params := assetParams(a, sc.notional())
			if s.extraParams != nil {
				for k, v := range s.extraParams(assets, a) {
					params[k] = v
				}
			}
			env := s.exec.Execute(ctx, router.Request{
				Function:       s.meta.id,
				Symbol:         a.Symbol,
				Exchange:       a.Exchange,
				UserID:         sc.UserID,
				SimulationMode: true,
				Parameters:     params,
			})
			if opp, ok := opportunityFrom(s.meta, a, env, sc); ok {
				results[i] = &opp
			}
		}(i, a)
	}
	wg.Wait()

	return collect(results), nil
}

func collect(results []*domain.Opportunity) []domain.Opportunity {
	var out []domain.Opportunity
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// pairsScanner pairs adjacent top-volume assets and scans each pair as one
// spread trade.
type pairsScanner struct {
	meta scannerMeta
	exec Executor
	log  zerolog.Logger
}

func (s *pairsScanner) StrategyID() string { return s.meta.id }

func (s *pairsScanner) Scan(ctx context.Context, sc ScanContext) ([]domain.Opportunity, error) {
	if !sc.Owned[s.meta.id] {
		return nil, nil
	}
	assets := selectAssets(sc, s.meta)
	if len(assets) == 0 {
		return nil, nil
	}

	type pair struct{ first, second domain.Asset }
	var pairs []pair
	if len(assets) == 1 {
		// Degenerate universe: spread the asset against itself. The ratio
		// is flat, so the backend holds, but the strategy still reports.
		pairs = append(pairs, pair{assets[0], assets[0]})
	} else {
		for i := 0; i+1 < len(assets); i += 2 {
			pairs = append(pairs, pair{assets[i], assets[i+1]})
		}
	}

	results := make([]*domain.Opportunity, len(pairs))
	sem := make(chan struct{}, s.meta.concurrency)
	var wg sync.WaitGroup

	for i, p := range pairs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return collect(results), ctx.Err()
		}
		wg.Add(1)
		go func(i int, p pair) {
			defer wg.Done()
			defer func() { <-sem }()

			params := assetParams(p.first, sc.notional())
			params["pair_price"] = p.second.PriceUSD
			if p.second.PriceUSD > 0 {
				params["expected_ratio"] = p.first.PriceUSD / p.second.PriceUSD * 0.97
				params["ratio_sigma"] = p.first.PriceUSD / p.second.PriceUSD * 0.01
			}
			env := s.exec.Execute(ctx, router.Request{
				Function:       s.meta.id,
				Symbol:         p.first.Symbol,
				PairSymbol:     p.second.Symbol,
				Exchange:       p.first.Exchange,
				UserID:         sc.UserID,
				SimulationMode: true,
				Parameters:     params,
			})
			if opp, ok := opportunityFrom(s.meta, p.first, env, sc); ok {
				opp.Metadata["pair_symbol"] = p.second.Symbol
				results[i] = &opp
			}
		}(i, p)
	}
	wg.Wait()

	return collect(results), nil
}

// accountScanner runs a portfolio-level strategy exactly once per scan and
// converts its recommendations into opportunities.
type accountScanner struct {
	meta scannerMeta
	exec Executor
	log  zerolog.Logger
}

func (s *accountScanner) StrategyID() string { return s.meta.id }

func (s *accountScanner) Scan(ctx context.Context, sc ScanContext) ([]domain.Opportunity, error) {
	if !sc.Owned[s.meta.id] {
		return nil, nil
	}

	var symbols []string
	for _, a := range sc.Universe.TopByVolume(10) {
		symbols = append(symbols, a.Symbol)
	}
	env := s.exec.Execute(ctx, router.Request{
		Function:       s.meta.id,
		UserID:         sc.UserID,
		SimulationMode: true,
		Parameters: map[string]interface{}{
			"symbols":          symbols,
			"portfolio_value":  sc.notional() * 10,
			"max_risk_percent": 2.0,
		},
	})
	if env == nil || !env.Success {
		if env != nil && env.Error != "" {
			s.log.Warn().Str("strategy", s.meta.id).Str("error", env.Error).Msg("account scan failed")
		}
		return nil, nil
	}

	var out []domain.Opportunity
	switch s.meta.id {
	case "risk_management":
		out = s.protectionOpportunities(env, sc)
	case "portfolio_optimization":
		out = s.rebalanceOpportunities(env, sc)
	}
	if len(out) == 0 {
		if opp, ok := s.advisoryOpportunity(env, sc); ok {
			out = append(out, opp)
		}
	}
	return out, nil
}

// advisoryOpportunity covers backends that answer with a bare signal and no
// per-position analysis: a single portfolio-level advisory.
func (s *accountScanner) advisoryOpportunity(env *router.Envelope, sc ScanContext) (domain.Opportunity, bool) {
	sig := env.Signal
	if sig == nil || sig.Action == "" || sig.Action == "HOLD" {
		return domain.Opportunity{}, false
	}
	return domain.Opportunity{
		StrategyID:         s.meta.id,
		StrategyName:       s.meta.name,
		OpportunityType:    s.meta.opportunityType,
		Symbol:             "PORTFOLIO",
		ConfidenceScore:    NormalizeConfidence(sig.Confidence, sig.Strength),
		RiskLevel:          riskLevelFor(sig.Strength),
		ProfitPotentialUSD: sc.notional() * 0.04 * sig.Strength / 10,
		EstimatedTimeframe: s.meta.timeframe,
		DiscoveredAt:       time.Now().UTC(),
		Metadata: map[string]any{
			"action":          sig.Action,
			"signal_strength": sig.Strength,
			"reason":          sig.Reason,
		},
	}, true
}

func (s *accountScanner) protectionOpportunities(env *router.Envelope, sc ScanContext) []domain.Opportunity {
	hints, _ := env.Analysis["hints"].([]map[string]interface{})
	confidence := 90.0
	if env.Signal != nil {
		confidence = NormalizeConfidence(env.Signal.Confidence, env.Signal.Strength)
	}

	var out []domain.Opportunity
	for _, hint := range hints {
		action, _ := hint["action"].(string)
		description, _ := hint["description"].(string)
		impact, _ := hint["impact_usd"].(float64)
		out = append(out, domain.Opportunity{
			StrategyID:         s.meta.id,
			StrategyName:       s.meta.name,
			OpportunityType:    "portfolio_protection",
			Symbol:             "PORTFOLIO",
			ConfidenceScore:    confidence,
			RiskLevel:          domain.RiskLow,
			ProfitPotentialUSD: impact * 0.1,
			RequiredCapitalUSD: 0,
			EstimatedTimeframe: s.meta.timeframe,
			DiscoveredAt:       time.Now().UTC(),
			Metadata: map[string]any{
				"action":      action,
				"description": description,
				"impact_usd":  impact,
			},
		})
	}
	return out
}

func (s *accountScanner) rebalanceOpportunities(env *router.Envelope, sc ScanContext) []domain.Opportunity {
	targets, _ := env.Analysis["targets"].([]map[string]interface{})
	confidence := 70.0
	if env.Signal != nil {
		confidence = NormalizeConfidence(env.Signal.Confidence, env.Signal.Strength)
	}

	var out []domain.Opportunity
	for _, target := range targets {
		symbol, _ := target["symbol"].(string)
		weight, _ := target["target_weight"].(float64)
		if symbol == "" {
			continue
		}
		out = append(out, domain.Opportunity{
			StrategyID:         s.meta.id,
			StrategyName:       s.meta.name,
			OpportunityType:    "rebalance",
			Symbol:             symbol,
			ConfidenceScore:    confidence,
			RiskLevel:          domain.RiskLow,
			ProfitPotentialUSD: sc.notional() * weight * 0.02,
			RequiredCapitalUSD: sc.notional() * weight,
			EstimatedTimeframe: s.meta.timeframe,
			DiscoveredAt:       time.Now().UTC(),
			Metadata: map[string]any{
				"target_weight": weight,
			},
		})
	}
	return out
}
