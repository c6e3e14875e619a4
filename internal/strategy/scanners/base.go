// Package scanners adapts the strategy router into per-strategy opportunity
// scans over the tiered universe.
package scanners

import (
	"context"
	"math"
	"time"

	"github.com/quantpulse/opportune/internal/domain"
	"github.com/quantpulse/opportune/internal/strategy/router"
	"github.com/quantpulse/opportune/internal/universe"
)

// Executor is the strategy router surface scanners call.
type Executor interface {
	Execute(ctx context.Context, req router.Request) *router.Envelope
}

// ScanContext carries the per-scan inputs shared by every scanner.
type ScanContext struct {
	UserID   string
	Universe *universe.Universe
	MaxTier  domain.Tier
	// Owned guards each scanner: a strategy the user does not own scans
	// nothing.
	Owned map[string]bool
	// Notional is the per-trade sizing basis in USD.
	Notional float64
}

func (sc ScanContext) notional() float64 {
	if sc.Notional > 0 {
		return sc.Notional
	}
	return 1000
}

// Scanner produces opportunities for one strategy.
type Scanner interface {
	StrategyID() string
	Scan(ctx context.Context, sc ScanContext) ([]domain.Opportunity, error)
}

// NormalizeConfidence maps backend confidence values of any common scale
// onto [0,100]. A missing value falls back to strength*10.
func NormalizeConfidence(value, strength float64) float64 {
	switch {
	case value <= 0:
		return clamp(strength*10, 0, 100)
	case value <= 1:
		return value * 100
	case value <= 100:
		return value
	case value <= 10000:
		return value / 100
	default:
		return 100
	}
}

// riskLevelFor grades signal strength into a risk bucket: stronger signals
// carry less execution risk.
func riskLevelFor(strength float64) domain.RiskLevel {
	switch {
	case strength > 7:
		return domain.RiskLow
	case strength > 5:
		return domain.RiskMedium
	case strength > 3:
		return domain.RiskMediumHigh
	default:
		return domain.RiskHigh
	}
}

func qualityTier(strength, strong, consider float64) string {
	switch {
	case strength >= strong:
		return "high"
	case strength >= consider:
		return "medium"
	default:
		return "low"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// tradeLevels is the resolved plan for one opportunity.
type tradeLevels struct {
	entry, stop, take    float64
	positionSize         float64
	riskAmount           float64
	potentialProfit      float64
	riskRewardRatio      float64
	maxRiskPercent       float64
	potentialGainPercent float64
}

// resolveLevels takes backend-supplied levels when present, otherwise infers
// them: stop 2% against the entry, take-profit 4% with it, position sized
// from the notional.
func resolveLevels(env *router.Envelope, action string, notional float64) (tradeLevels, bool) {
	var lv tradeLevels

	if rc := env.RiskManagement; rc != nil && rc.StopLossPrice > 0 && rc.TakeProfitPrice > 0 {
		lv.stop, lv.take = rc.StopLossPrice, rc.TakeProfitPrice
		lv.positionSize = rc.PositionSize
		lv.riskAmount = rc.RiskAmount
		lv.potentialProfit = rc.PotentialProfit
		lv.riskRewardRatio = rc.RiskRewardRatio
		lv.maxRiskPercent = rc.MaxRiskPercent
	}
	if tp := env.TradePlan; tp != nil && lv.entry == 0 {
		lv.entry = tp.EntryPrice
		if lv.stop == 0 {
			lv.stop, lv.take = tp.StopLoss, tp.TakeProfit
		}
		if lv.positionSize == 0 {
			lv.positionSize = tp.PositionSize
		}
	}
	if lv.entry == 0 && env.Indicators != nil && env.Indicators.PriceSnapshot != nil {
		lv.entry = env.Indicators.PriceSnapshot.Current
	}
	if lv.entry <= 0 {
		return lv, false
	}

	long := action != "SELL"
	if lv.stop == 0 || lv.take == 0 {
		if long {
			lv.stop = lv.entry * 0.98
			lv.take = lv.entry * 1.04
		} else {
			lv.stop = lv.entry * 1.02
			lv.take = lv.entry * 0.96
		}
	}
	if lv.positionSize == 0 {
		lv.positionSize = notional / lv.entry
	}
	if lv.riskAmount == 0 {
		lv.riskAmount = lv.positionSize * math.Abs(lv.entry-lv.stop)
	}
	if lv.potentialProfit == 0 {
		lv.potentialProfit = lv.positionSize * math.Abs(lv.take-lv.entry)
	}
	if lv.riskRewardRatio == 0 && lv.riskAmount > 0 {
		lv.riskRewardRatio = lv.potentialProfit / lv.riskAmount
	}
	if lv.maxRiskPercent == 0 {
		lv.maxRiskPercent = 2
	}
	lv.potentialGainPercent = math.Abs(lv.take-lv.entry) / lv.entry * 100
	return lv, true
}

// directional actions carry trade-plan levels; advisory actions do not.
func isDirectional(action string) bool {
	return action == "BUY" || action == "SELL"
}

// opportunityFrom converts one strategy envelope into an opportunity, or
// reports that the signal does not clear the inclusion bar.
func opportunityFrom(meta scannerMeta, a domain.Asset, env *router.Envelope, sc ScanContext) (domain.Opportunity, bool) {
	if env == nil || !env.Success || env.Signal == nil {
		return domain.Opportunity{}, false
	}
	sig := env.Signal
	if sig.Action == "HOLD" || sig.Strength < meta.minStrength {
		return domain.Opportunity{}, false
	}

	confidence := NormalizeConfidence(sig.Confidence, sig.Strength)
	notional := sc.notional()

	opp := domain.Opportunity{
		StrategyID:         meta.id,
		StrategyName:       meta.name,
		OpportunityType:    meta.opportunityType,
		Symbol:             a.Symbol,
		Exchange:           a.Exchange,
		ConfidenceScore:    confidence,
		RiskLevel:          riskLevelFor(sig.Strength),
		RequiredCapitalUSD: notional,
		EstimatedTimeframe: meta.timeframe,
		DiscoveredAt:       time.Now().UTC(),
		Metadata: map[string]any{
			"action":          sig.Action,
			"signal_strength": sig.Strength,
			"quality_tier":    qualityTier(sig.Strength, meta.strongStrength, meta.considerStrength),
			"reason":          sig.Reason,
		},
	}

	if isDirectional(sig.Action) {
		lv, ok := resolveLevels(env, sig.Action, notional)
		if !ok {
			return domain.Opportunity{}, false
		}
		opp.EntryPrice = lv.entry
		opp.ExitPrice = lv.take
		opp.StopLoss = lv.stop
		opp.TakeProfit = lv.take
		opp.ProfitPotentialUSD = lv.potentialProfit
		opp.Metadata["position_size"] = lv.positionSize
		opp.Metadata["risk_amount"] = lv.riskAmount
		opp.Metadata["risk_reward_ratio"] = lv.riskRewardRatio
		opp.Metadata["max_risk_percent"] = lv.maxRiskPercent
		opp.Metadata["potential_gain_percent"] = lv.potentialGainPercent
	} else {
		// Advisory signals (QUOTE, ARB, CARRY): conservative estimate
		// scaled by strength.
		opp.ProfitPotentialUSD = notional * 0.04 * sig.Strength / 10
	}
	return opp, true
}
