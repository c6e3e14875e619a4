package scanners

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/domain"
)

// metaTable tunes each of the fourteen scanners. Thresholds are on the
// router's [0,10] strength scale; "strong" marks the high quality tier and
// "consider" the medium one.
var metaTable = map[string]scannerMeta{
	"spot_momentum_strategy": {
		id: "spot_momentum_strategy", name: "Spot Momentum", opportunityType: "spot_trade",
		timeframe: "1-3 days", maxSymbols: 20, concurrency: 8,
		minStrength: 2.5, considerStrength: 4.0, strongStrength: 6.0,
	},
	"spot_mean_reversion": {
		id: "spot_mean_reversion", name: "Spot Mean Reversion", opportunityType: "spot_trade",
		timeframe: "2-5 days", maxSymbols: 15, concurrency: 6,
		minStrength: 2.5, considerStrength: 3.75, strongStrength: 5.0,
	},
	"spot_breakout_strategy": {
		id: "spot_breakout_strategy", name: "Spot Breakout", opportunityType: "spot_trade",
		timeframe: "1-7 days", maxSymbols: 15, concurrency: 6,
		minStrength: 5.0, considerStrength: 6.0, strongStrength: 7.5,
	},
	"swing_trading": {
		id: "swing_trading", name: "Swing Trading", opportunityType: "spot_trade",
		timeframe: "1-2 weeks", maxSymbols: 15, concurrency: 5,
		minStrength: 2.0, considerStrength: 4.0, strongStrength: 6.0,
	},
	"scalping_strategy": {
		id: "scalping_strategy", name: "Scalping", opportunityType: "spot_trade",
		timeframe: "minutes-hours", maxSymbols: 10, concurrency: 10,
		tierCeiling: domain.TierEnterprise,
		minStrength: 2.0, considerStrength: 4.0, strongStrength: 7.0,
	},
	"market_making": {
		id: "market_making", name: "Market Making", opportunityType: "liquidity_provision",
		timeframe: "continuous", maxSymbols: 10, concurrency: 6,
		tierCeiling: domain.TierProfessional,
		minStrength: 1.0, considerStrength: 3.0, strongStrength: 6.0,
	},
	"pairs_trading": {
		id: "pairs_trading", name: "Pairs Trading", opportunityType: "spread_trade",
		timeframe: "3-10 days", maxSymbols: 20, concurrency: 4,
		minStrength: 3.0, considerStrength: 4.0, strongStrength: 5.0,
	},
	"statistical_arbitrage": {
		id: "statistical_arbitrage", name: "Statistical Arbitrage", opportunityType: "spread_trade",
		timeframe: "1-5 days", maxSymbols: 15, concurrency: 5,
		minStrength: 3.0, considerStrength: 4.5, strongStrength: 6.0,
	},
	"futures_trade": {
		id: "futures_trade", name: "Futures Trading", opportunityType: "futures_trade",
		timeframe: "1-5 days", maxSymbols: 15, concurrency: 5,
		minStrength: 2.0, considerStrength: 4.0, strongStrength: 6.0,
	},
	"perpetual_trade": {
		id: "perpetual_trade", name: "Perpetuals", opportunityType: "perpetual_trade",
		timeframe: "1-3 days", maxSymbols: 15, concurrency: 5,
		minStrength: 2.0, considerStrength: 4.0, strongStrength: 6.0,
	},
	"options_trade": {
		id: "options_trade", name: "Options Trading", opportunityType: "options_trade",
		timeframe: "1-4 weeks", maxSymbols: 10, concurrency: 3,
		minStrength: 3.0, considerStrength: 5.0, strongStrength: 8.0,
	},
	"complex_strategy": {
		id: "complex_strategy", name: "Multi-Leg Strategies", opportunityType: "multi_leg",
		timeframe: "1-2 weeks", maxSymbols: 10, concurrency: 3,
		minStrength: 2.5, considerStrength: 4.0, strongStrength: 6.0,
	},
	"risk_management": {
		id: "risk_management", name: "Risk Management", opportunityType: "portfolio_protection",
		timeframe: "standing", concurrency: 1,
	},
	"portfolio_optimization": {
		id: "portfolio_optimization", name: "Portfolio Optimization", opportunityType: "rebalance",
		timeframe: "weekly", concurrency: 1,
	},
}

// StrategyIDs lists every strategy with a scanner.
func StrategyIDs() []string {
	ids := make([]string, 0, len(metaTable))
	for id := range metaTable {
		ids = append(ids, id)
	}
	return ids
}

// ForStrategy builds the scanner for one strategy id.
func ForStrategy(id string, exec Executor, log zerolog.Logger) (Scanner, bool) {
	meta, ok := metaTable[id]
	if !ok {
		return nil, false
	}
	log = log.With().Str("scanner", id).Logger()

	switch id {
	case "risk_management", "portfolio_optimization":
		return &accountScanner{meta: meta, exec: exec, log: log}, true
	case "pairs_trading":
		return &pairsScanner{meta: meta, exec: exec, log: log}, true
	case "statistical_arbitrage":
		return &symbolScanner{meta: meta, exec: exec, log: log, extraParams: basketParams}, true
	default:
		return &symbolScanner{meta: meta, exec: exec, log: log}, true
	}
}

// basketParams supplies the basket statistics statistical arbitrage measures
// each asset against.
func basketParams(selected []domain.Asset, a domain.Asset) map[string]interface{} {
	if len(selected) == 0 {
		return nil
	}
	var sum float64
	for _, b := range selected {
		sum += b.Metadata["change_pct_24h"]
	}
	mean := sum / float64(len(selected))

	var variance float64
	for _, b := range selected {
		d := b.Metadata["change_pct_24h"] - mean
		variance += d * d
	}
	sigma := 0.0
	if len(selected) > 1 {
		sigma = math.Sqrt(variance / float64(len(selected)-1))
	}
	if sigma < 0.5 {
		sigma = 0.5
	}
	return map[string]interface{}{
		"basket_mean_change": mean,
		"basket_sigma":       sigma,
	}
}
