package router

import "math"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// directionAction maps a signed score to a trade direction.
func directionAction(d float64) string {
	switch {
	case d > 0:
		return "BUY"
	case d < 0:
		return "SELL"
	default:
		return "HOLD"
	}
}

// rangePosition locates current within the 24h range, 0.5 when the range is
// degenerate.
func rangePosition(snap PriceSnapshot) float64 {
	if snap.High24h <= snap.Low24h {
		return 0.5
	}
	return clamp((snap.Current-snap.Low24h)/(snap.High24h-snap.Low24h), 0, 1)
}

// spreadPct is the 24h range as a percentage of the current price.
func spreadPct(snap PriceSnapshot) float64 {
	if snap.Current <= 0 {
		return 0
	}
	return (snap.High24h - snap.Low24h) / snap.Current * 100
}

const (
	defaultNotional   = 1000.0
	defaultStopPct    = 0.02
	defaultTakePct    = 0.04
	defaultMaxRiskPct = 2.0
)

// buildPlan derives the default trade plan for a directional entry: stop 2%
// against, take-profit 4% with, position sized from the notional.
func buildPlan(action string, entry, notional, maxRiskPct float64) (*TradePlan, *RiskControls) {
	if entry <= 0 || (action != "BUY" && action != "SELL") {
		return nil, nil
	}
	if notional <= 0 {
		notional = defaultNotional
	}
	if maxRiskPct <= 0 {
		maxRiskPct = defaultMaxRiskPct
	}

	var stop, take float64
	if action == "BUY" {
		stop = entry * (1 - defaultStopPct)
		take = entry * (1 + defaultTakePct)
	} else {
		stop = entry * (1 + defaultStopPct)
		take = entry * (1 - defaultTakePct)
	}

	size := notional / entry
	riskAmount := size * math.Abs(entry-stop)
	potential := size * math.Abs(take-entry)
	rr := 0.0
	if riskAmount > 0 {
		rr = potential / riskAmount
	}

	plan := &TradePlan{
		Action:       action,
		EntryPrice:   entry,
		StopLoss:     stop,
		TakeProfit:   take,
		PositionSize: size,
	}
	controls := &RiskControls{
		StopLossPrice:    stop,
		TakeProfitPrice:  take,
		PositionSize:     size,
		PositionNotional: notional,
		RiskAmount:       riskAmount,
		PotentialProfit:  potential,
		RiskRewardRatio:  rr,
		MaxRiskPercent:   maxRiskPct,
	}
	return plan, controls
}

// signalEnvelope assembles the common success shape for directional
// backends.
func signalEnvelope(function string, sig Signal, snap PriceSnapshot, values map[string]float64, analysis map[string]interface{}) *Envelope {
	env := success(function)
	s := sig
	env.Signal = &s
	env.Indicators = &Indicators{
		PriceSnapshot: &PriceSnapshot{
			Current:      snap.Current,
			High24h:      snap.High24h,
			Low24h:       snap.Low24h,
			ChangePct24h: snap.ChangePct24h,
		},
		Values: values,
	}
	env.Analysis = analysis
	return env
}
