// Package catalog defines the user-visible strategy set, its pricing tiers,
// and the user's activated portfolio.
package catalog

import "sort"

// Tier prices a strategy. Free strategies never debit credits.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Meta describes one catalog strategy.
type Meta struct {
	ID                string  `json:"strategy_id"`
	Name              string  `json:"name"`
	MonthlyCreditCost float64 `json:"monthly_credit_cost"`
	Tier              Tier    `json:"tier"`
	NeedsFutures      bool    `json:"needs_futures,omitempty"`
	NeedsOptions      bool    `json:"needs_options,omitempty"`
	NeedsMargin       bool    `json:"needs_margin,omitempty"`
	// Benefit is surfaced in strategy recommendations.
	Benefit string `json:"benefit,omitempty"`
}

// Free reports whether invoking the strategy is credit-free.
func (m Meta) Free() bool {
	return m.Tier == TierFree && m.MonthlyCreditCost == 0
}

var catalogTable = map[string]Meta{
	"spot_momentum_strategy": {
		ID: "spot_momentum_strategy", Name: "Spot Momentum", Tier: TierFree,
		Benefit: "Captures trending moves on high-volume spot pairs",
	},
	"risk_management": {
		ID: "risk_management", Name: "Risk Management", Tier: TierFree,
		Benefit: "Portfolio protection hints and stop placement",
	},
	"portfolio_optimization": {
		ID: "portfolio_optimization", Name: "Portfolio Optimization", Tier: TierFree,
		Benefit: "Rebalance targets across held assets",
	},
	"spot_mean_reversion": {
		ID: "spot_mean_reversion", Name: "Spot Mean Reversion", MonthlyCreditCost: 25, Tier: TierPro,
		Benefit: "Fades statistically stretched moves back to value",
	},
	"spot_breakout_strategy": {
		ID: "spot_breakout_strategy", Name: "Spot Breakout", MonthlyCreditCost: 25, Tier: TierPro,
		Benefit: "Enters confirmed range breaks early",
	},
	"swing_trading": {
		ID: "swing_trading", Name: "Swing Trading", MonthlyCreditCost: 25, Tier: TierPro,
		Benefit: "Multi-day positioning on medium-term structure",
	},
	"scalping_strategy": {
		ID: "scalping_strategy", Name: "Scalping", MonthlyCreditCost: 35, Tier: TierPro,
		Benefit: "High-frequency entries on top-volume books",
	},
	"pairs_trading": {
		ID: "pairs_trading", Name: "Pairs Trading", MonthlyCreditCost: 50, Tier: TierPro, NeedsMargin: true,
		Benefit: "Market-neutral spread trades on correlated pairs",
	},
	"market_making": {
		ID: "market_making", Name: "Market Making", MonthlyCreditCost: 50, Tier: TierPro,
		Benefit: "Captures spread on liquid books",
	},
	"futures_trade": {
		ID: "futures_trade", Name: "Futures Trading", MonthlyCreditCost: 50, Tier: TierPro, NeedsFutures: true,
		Benefit: "Leveraged directional exposure via futures",
	},
	"statistical_arbitrage": {
		ID: "statistical_arbitrage", Name: "Statistical Arbitrage", MonthlyCreditCost: 75, Tier: TierEnterprise, NeedsMargin: true,
		Benefit: "Basket-level mispricing capture",
	},
	"perpetual_trade": {
		ID: "perpetual_trade", Name: "Perpetuals", MonthlyCreditCost: 75, Tier: TierEnterprise, NeedsFutures: true,
		Benefit: "Funding-aware perpetual swap positioning",
	},
	"options_trade": {
		ID: "options_trade", Name: "Options Trading", MonthlyCreditCost: 100, Tier: TierEnterprise, NeedsOptions: true,
		Benefit: "Defined-risk option structures",
	},
	"complex_strategy": {
		ID: "complex_strategy", Name: "Multi-Leg Strategies", MonthlyCreditCost: 100, Tier: TierEnterprise, NeedsOptions: true, NeedsFutures: true,
		Benefit: "Combined spot, futures, and options legs",
	},
}

// Get returns catalog metadata for a strategy id.
func Get(id string) (Meta, bool) {
	m, ok := catalogTable[id]
	return m, ok
}

// All returns the full catalog keyed by strategy id.
func All() map[string]Meta {
	out := make(map[string]Meta, len(catalogTable))
	for id, m := range catalogTable {
		out[id] = m
	}
	return out
}

// IDs returns all catalog strategy ids, sorted.
func IDs() []string {
	out := make([]string, 0, len(catalogTable))
	for id := range catalogTable {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DefaultFreeStrategies is the onboarding set provisioned for users with an
// empty portfolio.
func DefaultFreeStrategies() []string {
	return []string{"risk_management", "portfolio_optimization", "spot_momentum_strategy"}
}
