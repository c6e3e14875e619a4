// Package router dispatches strategy function calls to their backends and
// returns a uniform envelope.
package router

import (
	"encoding/json"
	"time"
)

// Request is one strategy invocation.
type Request struct {
	Function       string                 `json:"function"`
	StrategyType   string                 `json:"strategy_type,omitempty"`
	Symbol         string                 `json:"symbol,omitempty"`
	PairSymbol     string                 `json:"pair_symbol,omitempty"`
	Exchange       string                 `json:"exchange,omitempty"`
	UserID         string                 `json:"user_id"`
	RiskMode       string                 `json:"risk_mode,omitempty"`
	SimulationMode bool                   `json:"simulation_mode,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
}

// Param reads a numeric parameter, zero when absent or non-numeric.
func (r Request) Param(key string) float64 {
	switch v := r.Parameters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Signal is a strategy's directional output. Strength is on [0,10];
// Confidence on [0,100] and may be zero when the backend does not score it.
type Signal struct {
	Action     string  `json:"action"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// PriceSnapshot carries the prices a signal was computed against.
type PriceSnapshot struct {
	Current      float64 `json:"current"`
	High24h      float64 `json:"high_24h,omitempty"`
	Low24h       float64 `json:"low_24h,omitempty"`
	ChangePct24h float64 `json:"change_pct_24h,omitempty"`
}

// Indicators bundles the computed inputs behind a signal.
type Indicators struct {
	PriceSnapshot *PriceSnapshot     `json:"price_snapshot,omitempty"`
	Values        map[string]float64 `json:"values,omitempty"`
}

// RiskControls are backend-supplied trade-plan levels.
type RiskControls struct {
	StopLossPrice    float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice  float64 `json:"take_profit_price,omitempty"`
	PositionSize     float64 `json:"position_size,omitempty"`
	PositionNotional float64 `json:"position_notional,omitempty"`
	RiskAmount       float64 `json:"risk_amount,omitempty"`
	PotentialProfit  float64 `json:"potential_profit,omitempty"`
	RiskRewardRatio  float64 `json:"risk_reward_ratio,omitempty"`
	MaxRiskPercent   float64 `json:"max_risk_percent,omitempty"`
}

// TradePlan is the concrete entry/exit plan for an executable signal.
type TradePlan struct {
	Action       string  `json:"action"`
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	PositionSize float64 `json:"position_size,omitempty"`
}

// ExecutionResult reports what an execution-capable backend did. In
// simulation mode no order leaves the process.
type ExecutionResult struct {
	Simulated bool   `json:"simulated"`
	OrderID   string `json:"order_id,omitempty"`
	Status    string `json:"status"`
}

// Envelope is the uniform response of every strategy function. The Analysis
// map marshals under a function-specific "<function>_analysis" key.
type Envelope struct {
	Success            bool
	Function           string
	Timestamp          time.Time
	Error              string
	AvailableFunctions []string
	Signal             *Signal
	TradePlan          *TradePlan
	RiskManagement     *RiskControls
	Indicators         *Indicators
	ExecutionResult    *ExecutionResult
	Analysis           map[string]interface{}
}

// MarshalJSON flattens the envelope into its wire form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"success":   e.Success,
		"function":  e.Function,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if len(e.AvailableFunctions) > 0 {
		m["available_functions"] = e.AvailableFunctions
	}
	if e.Signal != nil {
		m["signal"] = e.Signal
	}
	if e.TradePlan != nil {
		m["trade_plan"] = e.TradePlan
	}
	if e.RiskManagement != nil {
		m["risk_management"] = e.RiskManagement
	}
	if e.Indicators != nil {
		m["indicators"] = e.Indicators
	}
	if e.ExecutionResult != nil {
		m["execution_result"] = e.ExecutionResult
	}
	if len(e.Analysis) > 0 && e.Function != "" {
		m[e.Function+"_analysis"] = e.Analysis
	}
	return json.Marshal(m)
}

func success(function string) *Envelope {
	return &Envelope{Success: true, Function: function, Timestamp: time.Now().UTC()}
}

func failure(function, msg string) *Envelope {
	return &Envelope{Success: false, Function: function, Timestamp: time.Now().UTC(), Error: msg}
}
