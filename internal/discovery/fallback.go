package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/domain"
)

const (
	sourceCachedFallback = "cached_fallback"
	sourceBasicFallback  = "basic_fallback"

	errorLogTTL   = 72 * time.Hour
	userErrorTTL  = 24 * time.Hour
	fallbackLimit = 5
)

// Fallback produces degraded responses when the pipeline fails outright.
type Fallback struct {
	store   cache.Store
	metrics Hooks
	log     zerolog.Logger
}

// NewFallback wires the degradation layer.
func NewFallback(store cache.Store, metrics Hooks, log zerolog.Logger) *Fallback {
	if metrics == nil {
		metrics = noopHooks{}
	}
	return &Fallback{
		store:   store,
		metrics: metrics,
		log:     log.With().Str("component", "fallback").Logger(),
	}
}

// Degrade returns the best degraded response available: a recent cached scan
// truncated to five opportunities, else static portfolio-protection hints.
// The triggering error is recorded either way.
func (f *Fallback) Degrade(ctx context.Context, userID, scanID string, cause error) *Response {
	f.recordError(ctx, userID, scanID, cause)

	if resp := f.fromCache(ctx, userID, scanID); resp != nil {
		f.metrics.FallbackUsed(sourceCachedFallback)
		return resp
	}
	f.metrics.FallbackUsed(sourceBasicFallback)
	return f.basic(userID, scanID, cause)
}

// fromCache scans the user's cache namespace for any entry, newest not
// guaranteed; the first decodable hit wins.
func (f *Fallback) fromCache(ctx context.Context, userID, scanID string) *Response {
	keys, err := f.store.ScanKeys(ctx, UserPattern(userID))
	if err != nil {
		f.log.Error().Err(err).Str("user_id", userID).Msg("fallback cache scan failed")
		return nil
	}
	for _, key := range keys {
		var env cachedEnvelope
		ok, err := cache.GetJSON(ctx, f.store, key, &env)
		if err != nil || !ok || env.Payload == nil {
			continue
		}
		resp := env.Payload
		if len(resp.Opportunities) > fallbackLimit {
			resp.Opportunities = resp.Opportunities[:fallbackLimit]
		}
		resp.TotalOpportunities = len(resp.Opportunities)
		resp.ScanID = scanID
		resp.FallbackUsed = true
		resp.Source = sourceCachedFallback
		resp.LastUpdated = time.Now().UTC()
		f.log.Warn().Str("user_id", userID).Str("key", key).Msg("serving cached fallback")
		return resp
	}
	return nil
}

// basic is the floor: static portfolio-protection hints that need no
// upstream service at all.
func (f *Fallback) basic(userID, scanID string, cause error) *Response {
	now := time.Now().UTC()
	hints := []domain.Opportunity{
		{
			StrategyID:         "risk_management",
			StrategyName:       "Risk Management",
			OpportunityType:    "portfolio_protection",
			Symbol:             "PORTFOLIO",
			ConfidenceScore:    90,
			RiskLevel:          domain.RiskLow,
			EstimatedTimeframe: "standing",
			DiscoveredAt:       now,
			Metadata: map[string]any{
				"action":      "set_stop_losses",
				"description": "Protective stops at 2% below entry on all open positions",
			},
		},
		{
			StrategyID:         "risk_management",
			StrategyName:       "Risk Management",
			OpportunityType:    "portfolio_protection",
			Symbol:             "PORTFOLIO",
			ConfidenceScore:    85,
			RiskLevel:          domain.RiskLow,
			EstimatedTimeframe: "standing",
			DiscoveredAt:       now,
			Metadata: map[string]any{
				"action":      "reduce_concentration",
				"description": "Cap any single asset at 25% of portfolio value",
			},
		},
	}

	errType := "pipeline_failure"
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Response{
		Success:             true,
		ScanID:              scanID,
		UserID:              userID,
		Error:               msg,
		ErrorType:           errType,
		FallbackUsed:        true,
		Source:              sourceBasicFallback,
		Opportunities:       hints,
		TotalOpportunities:  len(hints),
		StrategyPerformance: map[string]StrategyScanStats{},
		LastUpdated:         now,
		Metadata:            map[string]interface{}{"scan_state": "complete"},
	}
}

// recordError bumps the daily and per-user error counters and writes the
// detailed error log entry.
func (f *Fallback) recordError(ctx context.Context, userID, scanID string, cause error) {
	day := time.Now().UTC().Format("2006-01-02")

	if n, err := f.store.Incr(ctx, "opportunity_errors:global:"+day); err == nil && n == 1 {
		_ = f.store.Expire(ctx, "opportunity_errors:global:"+day, errorLogTTL)
	}
	userKey := "opportunity_errors:user:" + userID
	if n, err := f.store.Incr(ctx, userKey); err == nil && n == 1 {
		_ = f.store.Expire(ctx, userKey, userErrorTTL)
	}

	entry := map[string]interface{}{
		"scan_id":   scanID,
		"user_id":   userID,
		"error":     fmt.Sprint(cause),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := cache.SetJSON(ctx, f.store, "opportunity_error_log:"+scanID, entry, errorLogTTL); err != nil {
		f.log.Error().Err(err).Str("scan_id", scanID).Msg("error log write failed")
	}
	f.log.Error().Err(cause).Str("user_id", userID).Str("scan_id", scanID).Msg("pipeline failure, degrading")
}
