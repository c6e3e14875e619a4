package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/opportune/internal/store"
)

type fakePrices map[string]float64

func (f fakePrices) Price(ctx context.Context, exchange, symbol string) (float64, error) {
	if p, ok := f[symbol]; ok {
		return p, nil
	}
	return 0, errors.New("no price")
}

type fakePerf map[string]store.StrategyPerformance

func (f fakePerf) Performance(ctx context.Context, ids []string) (map[string]store.StrategyPerformance, error) {
	out := make(map[string]store.StrategyPerformance)
	for _, id := range ids {
		if row, ok := f[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func testRouter() *Router {
	return New(fakePrices{"BTC": 50000, "ETH": 3000}, fakePerf{}, zerolog.Nop())
}

func momentumRequest(change float64) Request {
	return Request{
		Function: "spot_momentum_strategy",
		Symbol:   "BTC",
		UserID:   "u1",
		Parameters: map[string]interface{}{
			"current_price":  50000.0,
			"high_24h":       52000.0,
			"low_24h":        48000.0,
			"change_pct_24h": change,
		},
	}
}

func TestExecuteUnknownFunction(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{Function: "teleport_funds", UserID: "u1"})

	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
	assert.Len(t, env.AvailableFunctions, 25)
	assert.Contains(t, env.AvailableFunctions, "spot_momentum_strategy")
	assert.Contains(t, env.AvailableFunctions, "hedge_position")
}

func TestAllRegisteredFunctionsDispatch(t *testing.T) {
	rt := testRouter()
	for _, fn := range rt.Functions() {
		env := rt.Execute(context.Background(), Request{Function: fn, Symbol: "BTC", UserID: "u1"})
		require.NotNil(t, env, fn)
		assert.Equal(t, fn, env.Function, fn)
		assert.Empty(t, env.AvailableFunctions, "%s: recognized functions never list alternatives", fn)
	}
}

func TestSpotMomentumStrongSignal(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), momentumRequest(9.0))

	require.True(t, env.Success)
	require.NotNil(t, env.Signal)
	assert.Equal(t, "BUY", env.Signal.Action)
	assert.Equal(t, 6.0, env.Signal.Strength)
	assert.Equal(t, 60.0, env.Signal.Confidence)
	require.NotNil(t, env.TradePlan)
	assert.Equal(t, 50000*0.98, env.TradePlan.StopLoss)
	assert.Equal(t, 50000*1.04, env.TradePlan.TakeProfit)
	require.NotNil(t, env.RiskManagement)
	assert.InDelta(t, 2.0, env.RiskManagement.RiskRewardRatio, 1e-9)
}

func TestSpotMomentumWeakHolds(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), momentumRequest(0.5))

	require.True(t, env.Success)
	assert.Equal(t, "HOLD", env.Signal.Action)
	assert.Nil(t, env.TradePlan)
}

func TestSnapshotFallsBackToPriceService(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{
		Function:   "spot_momentum_strategy",
		Symbol:     "ETH",
		UserID:     "u1",
		Parameters: map[string]interface{}{"change_pct_24h": 5.0},
	})
	require.True(t, env.Success)
	assert.Equal(t, 3000.0, env.Indicators.PriceSnapshot.Current)
}

func TestSnapshotNoPriceFails(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{Function: "spot_mean_reversion", Symbol: "NOPE", UserID: "u1"})
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestMeanReversionFadesDeviation(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{
		Function: "spot_mean_reversion",
		Symbol:   "BTC",
		UserID:   "u1",
		Parameters: map[string]interface{}{
			// Midpoint 50000, quarter-range 1000, price two bands high.
			"current_price": 52000.0,
			"high_24h":      52000.0,
			"low_24h":       48000.0,
		},
	})
	require.True(t, env.Success)
	assert.Equal(t, "SELL", env.Signal.Action, "stretched above midpoint fades short")
	assert.Equal(t, 2.0, env.Analysis["deviation_z"])
}

func TestPairsTradingRequiresPairSymbol(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{Function: "pairs_trading", Symbol: "BTC", UserID: "u1"})
	assert.False(t, env.Success)
}

func TestPairsTradingSignal(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{
		Function:   "pairs_trading",
		Symbol:     "BTC",
		PairSymbol: "ETH",
		UserID:     "u1",
		Parameters: map[string]interface{}{
			"current_price":  50000.0,
			"expected_ratio": 15.0,
			"ratio_sigma":    0.5,
		},
	})
	require.True(t, env.Success)
	// ratio 50000/3000 = 16.67, z = 3.33: first leg rich, short it.
	assert.Equal(t, "SELL", env.Signal.Action)
	assert.Greater(t, env.Signal.Strength, 3.0)
}

func TestMarginStatusGrading(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{
		Function:   "margin_status",
		UserID:     "u1",
		Parameters: map[string]interface{}{"equity": 1000.0, "used_margin": 950.0},
	})
	require.True(t, env.Success)
	assert.Equal(t, "critical", env.Analysis["status"])
}

func TestRiskManagementAlwaysProducesHints(t *testing.T) {
	// No price source at all: protection hints must still work.
	rt := New(nil, nil, zerolog.Nop())
	env := rt.Execute(context.Background(), Request{Function: "risk_management", UserID: "u1"})

	require.True(t, env.Success)
	assert.Equal(t, "PROTECT", env.Signal.Action)
	hints, ok := env.Analysis["hints"].([]map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, hints)
}

func TestStrategyPerformance(t *testing.T) {
	perf := fakePerf{"spot_momentum_strategy": {StrategyID: "spot_momentum_strategy", WinRate: 0.6}}
	rt := New(fakePrices{}, perf, zerolog.Nop())

	env := rt.Execute(context.Background(), Request{
		Function:   "strategy_performance",
		UserID:     "u1",
		Parameters: map[string]interface{}{"strategy_ids": []interface{}{"spot_momentum_strategy"}},
	})
	require.True(t, env.Success)
	per, ok := env.Analysis["per_strategy"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, per, "spot_momentum_strategy")
}

func TestCalculateGreeksSanity(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), Request{
		Function: "calculate_greeks",
		Symbol:   "BTC",
		UserID:   "u1",
		Parameters: map[string]interface{}{
			"current_price":  50000.0,
			"strike":         50000.0,
			"days_to_expiry": 30.0,
			"implied_vol":    0.6,
		},
	})
	require.True(t, env.Success)
	delta := env.Analysis["delta"].(float64)
	assert.InDelta(t, 0.53, delta, 0.05, "at-the-money call delta near one half")
	assert.Positive(t, env.Analysis["gamma"].(float64))
	assert.Negative(t, env.Analysis["theta"].(float64))
}

func TestEnvelopeMarshalUsesFunctionAnalysisKey(t *testing.T) {
	rt := testRouter()
	env := rt.Execute(context.Background(), momentumRequest(9.0))

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Contains(t, m, "spot_momentum_strategy_analysis")
	assert.Contains(t, m, "signal")
	assert.Contains(t, m, "trade_plan")
	assert.NotContains(t, m, "error")
}

func TestExecuteCancelledContext(t *testing.T) {
	rt := testRouter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := rt.Execute(ctx, momentumRequest(9.0))
	assert.False(t, env.Success)
}
