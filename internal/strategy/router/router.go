package router

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/store"
)

// PriceSource supplies spot prices to backends.
type PriceSource interface {
	Price(ctx context.Context, exchange, symbol string) (float64, error)
}

// PerformanceReader supplies backtest aggregates for the
// strategy_performance function.
type PerformanceReader interface {
	Performance(ctx context.Context, strategyIDs []string) (map[string]store.StrategyPerformance, error)
}

type backend func(ctx context.Context, req Request) *Envelope

// Router maps function names to backends.
type Router struct {
	prices   PriceSource
	perf     PerformanceReader
	log      zerolog.Logger
	backends map[string]backend
	names    []string
}

// New builds the router with the full backend table registered.
func New(prices PriceSource, perf PerformanceReader, log zerolog.Logger) *Router {
	rt := &Router{
		prices: prices,
		perf:   perf,
		log:    log.With().Str("component", "strategy_router").Logger(),
	}
	rt.backends = map[string]backend{
		"spot_momentum_strategy": rt.spotMomentum,
		"spot_mean_reversion":    rt.spotMeanReversion,
		"spot_breakout_strategy": rt.spotBreakout,
		"algorithmic_trading":    rt.algorithmicTrading,
		"scalping_strategy":      rt.scalping,
		"swing_trading":          rt.swingTrading,
		"market_making":          rt.marketMaking,
		"pairs_trading":          rt.pairsTrading,
		"statistical_arbitrage":  rt.statisticalArbitrage,
		"futures_trade":          rt.futuresTrade,
		"perpetual_trade":        rt.perpetualTrade,
		"options_trade":          rt.optionsTrade,
		"complex_strategy":       rt.complexStrategy,
		"funding_arbitrage":      rt.fundingArbitrage,
		"basis_trade":            rt.basisTrade,
		"calculate_greeks":       rt.calculateGreeks,
		"options_chain":          rt.optionsChain,
		"leverage_position":      rt.leveragePosition,
		"liquidation_price":      rt.liquidationPrice,
		"margin_status":          rt.marginStatus,
		"hedge_position":         rt.hedgePosition,
		"position_management":    rt.positionManagement,
		"risk_management":        rt.riskManagement,
		"portfolio_optimization": rt.portfolioOptimization,
		"strategy_performance":   rt.strategyPerformance,
	}
	rt.names = make([]string, 0, len(rt.backends))
	for name := range rt.backends {
		rt.names = append(rt.names, name)
	}
	sort.Strings(rt.names)
	return rt
}

// Functions lists the recognized function names, sorted.
func (rt *Router) Functions() []string {
	return append([]string(nil), rt.names...)
}

// Execute dispatches one strategy invocation. Unknown functions and backend
// panics both come back as failure envelopes; Execute never raises.
func (rt *Router) Execute(ctx context.Context, req Request) (env *Envelope) {
	b, ok := rt.backends[req.Function]
	if !ok {
		env = failure(req.Function, fmt.Sprintf("unknown function %q", req.Function))
		env.AvailableFunctions = rt.Functions()
		return env
	}

	defer func() {
		if r := recover(); r != nil {
			rt.log.Error().Interface("panic", r).Str("function", req.Function).
				Str("user_id", req.UserID).Msg("strategy backend panicked")
			env = failure(req.Function, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return failure(req.Function, err.Error())
	}
	return b(ctx, req)
}

// snapshot resolves the request's price context. The caller-provided
// parameters win; the shared price service fills a missing current price.
func (rt *Router) snapshot(ctx context.Context, req Request) (PriceSnapshot, error) {
	snap := PriceSnapshot{
		Current:      req.Param("current_price"),
		High24h:      req.Param("high_24h"),
		Low24h:       req.Param("low_24h"),
		ChangePct24h: req.Param("change_pct_24h"),
	}
	if snap.Current <= 0 && rt.prices != nil && req.Symbol != "" {
		exchange := req.Exchange
		if exchange == "" {
			exchange = "binance"
		}
		p, err := rt.prices.Price(ctx, exchange, req.Symbol)
		if err != nil {
			return snap, fmt.Errorf("resolve price for %s: %w", req.Symbol, err)
		}
		snap.Current = p
	}
	if snap.Current <= 0 {
		return snap, fmt.Errorf("no price available for %s", req.Symbol)
	}
	return snap, nil
}
