package router

import (
	"context"
	"fmt"
	"math"
)

// spotMomentum scores the 24h trend. Strength scales with the move; a move
// below the inclusion floor holds.
func (rt *Router) spotMomentum(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	change := snap.ChangePct24h
	strength := clamp(math.Abs(change)/1.5, 0, 10)
	action := directionAction(change)
	if strength < 1 {
		action = "HOLD"
	}
	trend := "flat"
	if change > 0.5 {
		trend = "up"
	} else if change < -0.5 {
		trend = "down"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("24h change %.2f%%", change),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"momentum_score": strength, "range_position": rangePosition(snap)},
		map[string]interface{}{"momentum_score": strength, "trend": trend})

	if strength >= 2.5 && action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// spotMeanReversion fades stretched moves. Deviation is measured in
// quarter-range units against the 24h midpoint.
func (rt *Router) spotMeanReversion(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	mid := (snap.High24h + snap.Low24h) / 2
	band := (snap.High24h - snap.Low24h) / 4
	z := 0.0
	if band > 0 && mid > 0 {
		z = (snap.Current - mid) / band
	}

	// Trade against the deviation.
	action := directionAction(-z)
	strength := clamp(math.Abs(z)*2.5, 0, 10)
	if math.Abs(z) <= 1.0 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("deviation %.2f quarter-ranges from midpoint", z),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"deviation_z": z, "midpoint": mid},
		map[string]interface{}{"deviation_z": z, "mean_price": mid})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// spotBreakout estimates the chance of a confirmed range break to the
// upside from range position and momentum.
func (rt *Router) spotBreakout(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	pos := rangePosition(snap)
	prob := clamp(pos*0.7+clamp(snap.ChangePct24h/10, 0, 0.3), 0, 1)

	action := "HOLD"
	if prob > 0.5 {
		action = "BUY"
	}
	strength := clamp(prob*10, 0, 10)

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(prob*100, 0, 100),
		Reason:     fmt.Sprintf("breakout probability %.2f at %.0f%% of range", prob, pos*100),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"breakout_probability": prob, "range_position": pos},
		map[string]interface{}{"breakout_probability": prob, "resistance": snap.High24h, "support": snap.Low24h})

	if action == "BUY" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// algorithmicTrading blends momentum and mean-reversion components into one
// composite score.
func (rt *Router) algorithmicTrading(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	momentum := clamp(snap.ChangePct24h/1.5, -10, 10)
	mid := (snap.High24h + snap.Low24h) / 2
	band := (snap.High24h - snap.Low24h) / 4
	reversion := 0.0
	if band > 0 && mid > 0 {
		reversion = clamp(-(snap.Current-mid)/band*2.5, -10, 10)
	}
	composite := 0.6*momentum + 0.4*reversion

	action := directionAction(composite)
	strength := clamp(math.Abs(composite), 0, 10)
	if strength < 2 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     "composite of momentum and reversion components",
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"momentum_component": momentum, "reversion_component": reversion, "composite": composite},
		map[string]interface{}{"composite_score": composite})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// scalping requires deep books: thin markets are excluded regardless of
// signal.
func (rt *Router) scalping(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	volume := req.Param("volume_24h_usd")
	if volume < 10_000_000 {
		sig := Signal{Action: "HOLD", Strength: 0, Reason: "insufficient volume for scalping"}
		return signalEnvelope(req.Function, sig, snap,
			map[string]float64{"volume_24h_usd": volume}, nil)
	}

	spread := spreadPct(snap)
	micro := clamp(math.Abs(snap.ChangePct24h)/0.8, 0, 10)
	action := directionAction(snap.ChangePct24h)
	if micro < 2 || spread > 6 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   micro,
		Confidence: clamp(micro*9, 0, 100),
		Reason:     fmt.Sprintf("micro momentum %.1f with %.2f%% range", micro, spread),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"micro_momentum": micro, "spread_pct": spread, "volume_24h_usd": volume},
		map[string]interface{}{"spread_pct": spread})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// swingTrading looks for medium-term structure: trend direction agreeing
// with position inside the range.
func (rt *Router) swingTrading(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	pos := rangePosition(snap)
	change := snap.ChangePct24h
	aligned := (change > 0 && pos > 0.55) || (change < 0 && pos < 0.45)

	strength := clamp(math.Abs(change)/2, 0, 10)
	action := "HOLD"
	if aligned && strength >= 2 {
		action = directionAction(change)
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("structure %s momentum at %.0f%% of range", map[bool]string{true: "confirms", false: "contradicts"}[aligned], pos*100),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"range_position": pos, "trend_strength": strength},
		map[string]interface{}{"structure_aligned": aligned})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// marketMaking quotes both sides when the book is deep and the daily range
// is wide enough to pay the spread but not trending away.
func (rt *Router) marketMaking(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	volume := req.Param("volume_24h_usd")
	spread := spreadPct(snap)
	viable := volume >= 50_000_000 && spread >= 0.5 && spread <= 5 && math.Abs(snap.ChangePct24h) < 3

	action := "HOLD"
	strength := 0.0
	if viable {
		action = "QUOTE"
		strength = clamp(spread*2, 0, 10)
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("%.2f%% daily range on $%.0fM volume", spread, volume/1e6),
	}
	return signalEnvelope(req.Function, sig, snap,
		map[string]float64{"spread_pct": spread, "volume_24h_usd": volume},
		map[string]interface{}{
			"viable":    viable,
			"bid_quote": snap.Current * (1 - spread/400),
			"ask_quote": snap.Current * (1 + spread/400),
		})
}

// pairsTrading trades the ratio of two legs against its expected value.
func (rt *Router) pairsTrading(ctx context.Context, req Request) *Envelope {
	if req.PairSymbol == "" {
		return failure(req.Function, "pair_symbol is required")
	}
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	second := req.Param("pair_price")
	if second <= 0 && rt.prices != nil {
		exchange := req.Exchange
		if exchange == "" {
			exchange = "binance"
		}
		p, perr := rt.prices.Price(ctx, exchange, req.PairSymbol)
		if perr != nil {
			return failure(req.Function, fmt.Sprintf("resolve pair leg %s: %v", req.PairSymbol, perr))
		}
		second = p
	}
	if second <= 0 {
		return failure(req.Function, "no price for pair leg")
	}

	ratio := snap.Current / second
	expected := req.Param("expected_ratio")
	sigma := req.Param("ratio_sigma")
	if expected <= 0 {
		expected = ratio
	}
	if sigma <= 0 {
		sigma = expected * 0.01
	}
	z := (ratio - expected) / sigma

	// Positive z: first leg rich, short the spread.
	action := directionAction(-z)
	strength := clamp(math.Abs(z)*1.6, 0, 10)
	if strength <= 3.0 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("ratio %.4f vs expected %.4f (z=%.2f)", ratio, expected, z),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"ratio": ratio, "expected_ratio": expected, "ratio_z": z},
		map[string]interface{}{
			"pair":    req.Symbol + "/" + req.PairSymbol,
			"ratio_z": z,
			"leg_one": snap.Current,
			"leg_two": second,
		})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// statisticalArbitrage measures one asset's divergence from its basket.
func (rt *Router) statisticalArbitrage(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	basketMean := req.Param("basket_mean_change")
	basketSigma := req.Param("basket_sigma")
	if basketSigma <= 0 {
		basketSigma = 2
	}
	z := (snap.ChangePct24h - basketMean) / basketSigma

	// Trade toward the basket.
	action := directionAction(-z)
	strength := clamp(math.Abs(z)*2, 0, 10)
	if math.Abs(z) < 1.5 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("%.2f sigma from basket mean", z),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"basket_z": z, "basket_mean_change": basketMean},
		map[string]interface{}{"basket_z": z})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}
