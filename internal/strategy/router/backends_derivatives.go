package router

import (
	"context"
	"fmt"
	"math"
)

// futuresTrade is directional momentum with leverage-aware risk levels.
func (rt *Router) futuresTrade(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	leverage := req.Param("leverage")
	if leverage <= 0 {
		leverage = 3
	}
	strength := clamp(math.Abs(snap.ChangePct24h)/1.5, 0, 10)
	action := directionAction(snap.ChangePct24h)
	if strength < 2 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("%.1fx leveraged trend follow", leverage),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"leverage": leverage},
		map[string]interface{}{
			"leverage":          leverage,
			"liquidation_price": liqPrice(snap.Current, leverage, action),
		})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// perpetualTrade leans against crowded funding.
func (rt *Router) perpetualTrade(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	funding := req.Param("funding_rate")
	// Positive funding means longs pay: crowded long, fade it.
	action := directionAction(-funding)
	strength := clamp(math.Abs(funding)*20000, 0, 10)
	if strength < 2 {
		action = "HOLD"
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("funding rate %.4f%% per interval", funding*100),
	}
	env := signalEnvelope(req.Function, sig, snap,
		map[string]float64{"funding_rate": funding},
		map[string]interface{}{
			"funding_rate":       funding,
			"funding_annualized": funding * 3 * 365 * 100,
		})

	if action != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(action, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// fundingArbitrage pairs a spot leg against the perpetual to harvest
// funding, direction-neutral.
func (rt *Router) fundingArbitrage(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	funding := req.Param("funding_rate")
	annualized := funding * 3 * 365 * 100
	viable := math.Abs(annualized) > 5

	action := "HOLD"
	if viable {
		action = "ARB"
	}
	strength := clamp(math.Abs(annualized)/3, 0, 10)

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("funding annualizes to %.1f%%", annualized),
	}
	return signalEnvelope(req.Function, sig, snap,
		map[string]float64{"funding_rate": funding, "annualized_pct": annualized},
		map[string]interface{}{
			"annualized_pct": annualized,
			"spot_leg":       map[string]interface{}{"action": "BUY", "price": snap.Current},
			"perp_leg":       map[string]interface{}{"action": "SELL", "price": snap.Current},
		})
}

// basisTrade carries spot against a dated future.
func (rt *Router) basisTrade(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	futures := req.Param("futures_price")
	if futures <= 0 {
		return failure(req.Function, "futures_price is required")
	}
	days := req.Param("days_to_expiry")
	if days <= 0 {
		days = 90
	}

	basisPct := (futures - snap.Current) / snap.Current * 100
	annualized := basisPct * 365 / days
	viable := annualized > 4

	action := "HOLD"
	if viable {
		action = "CARRY"
	}
	strength := clamp(annualized/2, 0, 10)

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     fmt.Sprintf("basis %.2f%% annualizes to %.1f%%", basisPct, annualized),
	}
	return signalEnvelope(req.Function, sig, snap,
		map[string]float64{"basis_pct": basisPct, "annualized_pct": annualized, "days_to_expiry": days},
		map[string]interface{}{"basis_pct": basisPct, "annualized_pct": annualized})
}

// optionsTrade picks structure from the volatility regime: rich realized
// vol sells premium, quiet tape buys direction.
func (rt *Router) optionsTrade(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	volProxy := spreadPct(snap)
	var action, structure string
	switch {
	case volProxy > 8:
		action, structure = "SELL_PREMIUM", "iron_condor"
	case math.Abs(snap.ChangePct24h) > 3:
		action, structure = directionAction(snap.ChangePct24h), "long_vertical"
	default:
		action, structure = "HOLD", ""
	}
	strength := clamp(volProxy, 0, 10)

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: clamp(strength*9, 0, 100),
		Reason:     fmt.Sprintf("daily range %.2f%% of spot", volProxy),
	}
	return signalEnvelope(req.Function, sig, snap,
		map[string]float64{"realized_vol_proxy": volProxy},
		map[string]interface{}{"structure": structure, "realized_vol_proxy": volProxy})
}

// complexStrategy lays out a multi-leg position combining the directional
// view with a funding hedge.
func (rt *Router) complexStrategy(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	direction := directionAction(snap.ChangePct24h)
	strength := clamp(math.Abs(snap.ChangePct24h)/2, 0, 10)
	if strength < 2.5 {
		direction = "HOLD"
	}

	var legs []map[string]interface{}
	if direction != "HOLD" {
		legs = []map[string]interface{}{
			{"instrument": "spot", "action": direction, "weight": 0.6},
			{"instrument": "perpetual", "action": direction, "weight": 0.3},
			{"instrument": "option", "action": "BUY", "structure": "protective", "weight": 0.1},
		}
	}

	sig := Signal{
		Action:     direction,
		Strength:   strength,
		Confidence: clamp(strength*10, 0, 100),
		Reason:     "multi-leg directional with protective overlay",
	}
	env := signalEnvelope(req.Function, sig, snap, nil,
		map[string]interface{}{"legs": legs, "leg_count": len(legs)})

	if direction != "HOLD" {
		env.TradePlan, env.RiskManagement = buildPlan(direction, snap.Current, req.Param("notional"), req.Param("max_risk_percent"))
	}
	return env
}

// calculateGreeks prices Black-Scholes greeks for one option.
func (rt *Router) calculateGreeks(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	strike := req.Param("strike")
	if strike <= 0 {
		return failure(req.Function, "strike is required")
	}
	days := req.Param("days_to_expiry")
	if days <= 0 {
		days = 30
	}
	iv := req.Param("implied_vol")
	if iv <= 0 {
		iv = 0.6
	}
	isCall := req.StrategyType != "put"

	g := blackScholesGreeks(snap.Current, strike, days/365, iv, isCall)

	env := success(req.Function)
	env.Indicators = &Indicators{PriceSnapshot: &PriceSnapshot{Current: snap.Current}}
	env.Analysis = map[string]interface{}{
		"strike":         strike,
		"days_to_expiry": days,
		"implied_vol":    iv,
		"delta":          g.delta,
		"gamma":          g.gamma,
		"theta":          g.theta,
		"vega":           g.vega,
	}
	return env
}

// optionsChain synthesizes a strike ladder around spot with per-strike
// greeks.
func (rt *Router) optionsChain(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	days := req.Param("days_to_expiry")
	if days <= 0 {
		days = 30
	}
	iv := req.Param("implied_vol")
	if iv <= 0 {
		iv = 0.6
	}

	var chain []map[string]interface{}
	for pct := -20.0; pct <= 20.0; pct += 5.0 {
		strike := snap.Current * (1 + pct/100)
		g := blackScholesGreeks(snap.Current, strike, days/365, iv, true)
		chain = append(chain, map[string]interface{}{
			"strike":        strike,
			"moneyness_pct": pct,
			"call_delta":    g.delta,
			"gamma":         g.gamma,
		})
	}

	env := success(req.Function)
	env.Analysis = map[string]interface{}{
		"spot":           snap.Current,
		"days_to_expiry": days,
		"strikes":        chain,
	}
	return env
}

// leveragePosition sizes a leveraged entry and reports its margin needs.
func (rt *Router) leveragePosition(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	leverage := req.Param("leverage")
	if leverage <= 0 {
		leverage = 3
	}
	notional := req.Param("notional")
	if notional <= 0 {
		notional = defaultNotional
	}
	action := req.StrategyType
	if action != "SELL" {
		action = "BUY"
	}

	env := success(req.Function)
	env.Analysis = map[string]interface{}{
		"leverage":          leverage,
		"notional":          notional,
		"margin_required":   notional / leverage,
		"position_size":     notional / snap.Current,
		"liquidation_price": liqPrice(snap.Current, leverage, action),
	}
	if req.SimulationMode {
		env.ExecutionResult = &ExecutionResult{Simulated: true, Status: "simulated"}
	}
	return env
}

// liquidationPrice computes where a leveraged position is forcibly closed,
// with a 0.5% maintenance-margin buffer.
func (rt *Router) liquidationPrice(ctx context.Context, req Request) *Envelope {
	entry := req.Param("entry_price")
	if entry <= 0 {
		snap, err := rt.snapshot(ctx, req)
		if err != nil {
			return failure(req.Function, err.Error())
		}
		entry = snap.Current
	}
	leverage := req.Param("leverage")
	if leverage <= 0 {
		return failure(req.Function, "leverage is required")
	}
	side := req.StrategyType
	if side != "SELL" {
		side = "BUY"
	}

	env := success(req.Function)
	env.Analysis = map[string]interface{}{
		"entry_price":       entry,
		"leverage":          leverage,
		"side":              side,
		"liquidation_price": liqPrice(entry, leverage, side),
	}
	return env
}

// marginStatus grades account health from equity and used margin.
func (rt *Router) marginStatus(ctx context.Context, req Request) *Envelope {
	equity := req.Param("equity")
	used := req.Param("used_margin")
	if equity <= 0 || used < 0 {
		return failure(req.Function, "equity and used_margin are required")
	}

	level := math.Inf(1)
	if used > 0 {
		level = equity / used * 100
	}
	status := "healthy"
	switch {
	case level < 110:
		status = "critical"
	case level < 150:
		status = "warning"
	}

	env := success(req.Function)
	env.Analysis = map[string]interface{}{
		"equity":           equity,
		"used_margin":      used,
		"margin_level_pct": level,
		"status":           status,
		"free_margin":      equity - used,
	}
	return env
}

// hedgePosition proposes the offsetting perpetual for an existing holding.
func (rt *Router) hedgePosition(ctx context.Context, req Request) *Envelope {
	snap, err := rt.snapshot(ctx, req)
	if err != nil {
		return failure(req.Function, err.Error())
	}

	size := req.Param("position_size")
	if size <= 0 {
		return failure(req.Function, "position_size is required")
	}
	side := req.StrategyType
	if side != "SELL" {
		side = "BUY"
	}
	hedgeSide := "SELL"
	if side == "SELL" {
		hedgeSide = "BUY"
	}
	ratio := req.Param("hedge_ratio")
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	env := success(req.Function)
	env.Signal = &Signal{Action: hedgeSide, Strength: 5, Confidence: 80, Reason: "delta-neutralizing hedge"}
	env.Analysis = map[string]interface{}{
		"hedge_instrument": "perpetual",
		"hedge_side":       hedgeSide,
		"hedge_size":       size * ratio,
		"hedge_ratio":      ratio,
		"reference_price":  snap.Current,
	}
	return env
}

// liqPrice is the approximate liquidation level for a leveraged entry.
func liqPrice(entry, leverage float64, side string) float64 {
	if leverage <= 1 {
		return 0
	}
	buffer := 1/leverage - 0.005
	if side == "SELL" {
		return entry * (1 + buffer)
	}
	return entry * (1 - buffer)
}

type greeks struct {
	delta, gamma, theta, vega float64
}

// blackScholesGreeks computes first-order greeks with zero rates.
func blackScholesGreeks(spot, strike, years, iv float64, call bool) greeks {
	if spot <= 0 || strike <= 0 || years <= 0 || iv <= 0 {
		return greeks{}
	}
	sqrtT := math.Sqrt(years)
	d1 := (math.Log(spot/strike) + 0.5*iv*iv*years) / (iv * sqrtT)
	nd1 := math.Exp(-d1*d1/2) / math.Sqrt(2*math.Pi)
	cnd1 := 0.5 * (1 + math.Erf(d1/math.Sqrt2))

	g := greeks{
		gamma: nd1 / (spot * iv * sqrtT),
		theta: -(spot * nd1 * iv) / (2 * sqrtT) / 365,
		vega:  spot * nd1 * sqrtT / 100,
	}
	if call {
		g.delta = cnd1
	} else {
		g.delta = cnd1 - 1
	}
	return g
}
