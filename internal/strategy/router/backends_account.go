package router

import (
	"context"
	"fmt"
)

// positionManagement grades an open position and suggests the next action.
func (rt *Router) positionManagement(ctx context.Context, req Request) *Envelope {
	pnlPct := req.Param("unrealized_pnl_pct")
	heldDays := req.Param("held_days")

	action := "HOLD"
	reason := "position within normal bands"
	switch {
	case pnlPct >= 10:
		action, reason = "TAKE_PARTIAL", "unrealized gain past the scale-out threshold"
	case pnlPct <= -5:
		action, reason = "REDUCE", "drawdown past the risk limit"
	case heldDays > 30 && pnlPct < 1:
		action, reason = "REVIEW", "stale position with no progress"
	}

	env := success(req.Function)
	env.Signal = &Signal{Action: action, Strength: 5, Confidence: 75, Reason: reason}
	env.Analysis = map[string]interface{}{
		"unrealized_pnl_pct": pnlPct,
		"held_days":          heldDays,
		"recommended_action": action,
	}
	return env
}

// riskManagement emits portfolio-protection hints. It never needs market
// data and must keep working when every feed is down.
func (rt *Router) riskManagement(ctx context.Context, req Request) *Envelope {
	portfolioValue := req.Param("portfolio_value")
	if portfolioValue <= 0 {
		portfolioValue = 10000
	}
	maxRisk := req.Param("max_risk_percent")
	if maxRisk <= 0 {
		maxRisk = defaultMaxRiskPct
	}

	hints := []map[string]interface{}{
		{
			"action":      "set_stop_losses",
			"description": fmt.Sprintf("Protective stops at %.1f%% below entry on all open positions", defaultStopPct*100),
			"impact_usd":  portfolioValue * maxRisk / 100,
			"priority":    1,
		},
		{
			"action":      "reduce_concentration",
			"description": "Cap any single asset at 25% of portfolio value",
			"impact_usd":  portfolioValue * 0.25,
			"priority":    2,
		},
		{
			"action":      "hedge_tail_risk",
			"description": "Hold a small protective put or short-perp overlay against drawdowns",
			"impact_usd":  portfolioValue * 0.05,
			"priority":    3,
		},
	}

	env := success(req.Function)
	env.Signal = &Signal{Action: "PROTECT", Strength: 5, Confidence: 90, Reason: "standing portfolio protection"}
	env.RiskManagement = &RiskControls{MaxRiskPercent: maxRisk}
	env.Analysis = map[string]interface{}{
		"portfolio_value": portfolioValue,
		"hints":           hints,
	}
	return env
}

// portfolioOptimization proposes equal-weight rebalance targets over the
// scanned symbol set.
func (rt *Router) portfolioOptimization(ctx context.Context, req Request) *Envelope {
	symbols := stringSlice(req.Parameters["symbols"])
	if len(symbols) == 0 {
		env := success(req.Function)
		env.Signal = &Signal{Action: "HOLD", Strength: 0, Reason: "no holdings to optimize"}
		env.Analysis = map[string]interface{}{"targets": []interface{}{}}
		return env
	}

	weight := 1.0 / float64(len(symbols))
	targets := make([]map[string]interface{}, 0, len(symbols))
	for _, sym := range symbols {
		targets = append(targets, map[string]interface{}{
			"symbol":        sym,
			"target_weight": weight,
		})
	}

	env := success(req.Function)
	env.Signal = &Signal{Action: "REBALANCE", Strength: 4, Confidence: 70, Reason: "equal-weight targets across scanned assets"}
	env.Analysis = map[string]interface{}{
		"method":  "equal_weight",
		"targets": targets,
	}
	return env
}

// strategyPerformance reports backtest aggregates for the requested
// strategies.
func (rt *Router) strategyPerformance(ctx context.Context, req Request) *Envelope {
	if rt.perf == nil {
		return failure(req.Function, "performance store not configured")
	}
	ids := stringSlice(req.Parameters["strategy_ids"])
	if len(ids) == 0 {
		return failure(req.Function, "strategy_ids is required")
	}

	rows, err := rt.perf.Performance(ctx, ids)
	if err != nil {
		return failure(req.Function, fmt.Sprintf("load performance: %v", err))
	}

	perStrategy := make(map[string]interface{}, len(rows))
	for id, row := range rows {
		perStrategy[id] = row
	}
	env := success(req.Function)
	env.Analysis = map[string]interface{}{
		"requested":    ids,
		"per_strategy": perStrategy,
	}
	return env
}

func stringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
