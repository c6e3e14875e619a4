package domain

import "time"

// RiskLevel grades an opportunity's downside exposure.
type RiskLevel string

const (
	RiskLow        RiskLevel = "low"
	RiskMedium     RiskLevel = "medium"
	RiskMediumHigh RiskLevel = "medium_high"
	RiskHigh       RiskLevel = "high"
	RiskVeryHigh   RiskLevel = "very_high"
)

// Opportunity is a single ranked, metadata-annotated trade idea. Opportunities
// are owned by the scan that produced them and never mutated afterward.
type Opportunity struct {
	StrategyID         string         `json:"strategy_id"`
	StrategyName       string         `json:"strategy_name"`
	OpportunityType    string         `json:"opportunity_type"`
	Symbol             string         `json:"symbol"`
	Exchange           string         `json:"exchange"`
	ProfitPotentialUSD float64        `json:"profit_potential_usd"`
	ConfidenceScore    float64        `json:"confidence_score"`
	RiskLevel          RiskLevel      `json:"risk_level"`
	RequiredCapitalUSD float64        `json:"required_capital_usd"`
	EstimatedTimeframe string         `json:"estimated_timeframe"`
	EntryPrice         float64        `json:"entry_price,omitempty"`
	ExitPrice          float64        `json:"exit_price,omitempty"`
	StopLoss           float64        `json:"stop_loss,omitempty"`
	TakeProfit         float64        `json:"take_profit,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	DiscoveredAt       time.Time      `json:"discovered_at"`
}

/// RankScore is the primary ranking key: profit potential weighted by
// confidence. Ranking is stable; ties keep insertion order.
func (o Opportunity) RankScore() float64 {
	return o.ProfitPotentialUSD * o.ConfidenceScore
}

// Valid reports whether the opportunity satisfies its invariants.
func (o Opportunity) Valid() bool {
	return o.ProfitPotentialUSD >= 0 &&
		o.RequiredCapitalUSD >= 0 &&
		o.ConfidenceScore >= 0 && o.ConfidenceScore <= 100
}
