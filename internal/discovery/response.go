// Package discovery orchestrates per-user opportunity scans: portfolio
// resolution, universe selection, scanner fan-out, ranking, caching, and
// degradation.
package discovery

import (
	"time"

	"github.com/quantpulse/opportune/internal/domain"
)

// SignalsByStrength buckets gathered signals for the response summary.
type SignalsByStrength struct {
	VeryStrong int `json:"very_strong"`
	Strong     int `json:"strong"`
	Moderate   int `json:"moderate"`
	Weak       int `json:"weak"`
}

// ThresholdAnalysis explains how the display threshold relates to the
// legacy inclusion bar.
type ThresholdAnalysis struct {
	OriginalThreshold               float64 `json:"original_threshold"`
	OpportunitiesAboveOriginal      int     `json:"opportunities_above_original"`
	OpportunitiesShown              int     `json:"opportunities_shown"`
	AdditionalOpportunitiesRevealed int     `json:"additional_opportunities_revealed"`
}

// SignalAnalysis summarizes every signal the scan evaluated.
type SignalAnalysis struct {
	TotalSignalsAnalyzed int               `json:"total_signals_analyzed"`
	SignalsByStrength    SignalsByStrength `json:"signals_by_strength"`
	ThresholdAnalysis    ThresholdAnalysis `json:"threshold_analysis"`
}

// ThresholdTransparency is the user-facing explanation of the above.
type ThresholdTransparency struct {
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// UserProfileView is the profile slice embedded in responses.
type UserProfileView struct {
	ActiveStrategies    []string `json:"active_strategies"`
	ActiveStrategyCount int      `json:"active_strategy_count"`
	UserTier            string   `json:"user_tier"`
	MonthlyStrategyCost float64  `json:"monthly_strategy_cost"`
	ScanLimit           int      `json:"scan_limit"`
	StrategyFingerprint string   `json:"strategy_fingerprint"`
}

// StrategyScanStats aggregates one strategy's contribution to a scan.
type StrategyScanStats struct {
	Count          int     `json:"count"`
	TotalPotential float64 `json:"total_potential"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// AssetDiscovery summarizes the scanned universe.
type AssetDiscovery struct {
	TotalAssetsScanned int            `json:"total_assets_scanned"`
	AssetTiers         map[string]int `json:"asset_tiers"`
	MaxTierAccessed    string         `json:"max_tier_accessed"`
}

// Recommendation suggests a strategy or tier the user does not have.
type Recommendation struct {
	StrategyID string `json:"strategy_id,omitempty"`
	Name       string `json:"name"`
	Benefit    string `json:"benefit"`
	Reason     string `json:"reason"`
	Type       string `json:"type"`
}

// PerformanceMetrics carries per-scan operational numbers.
type PerformanceMetrics struct {
	PortfolioFetchTimeMS float64 `json:"portfolio_fetch_time_ms"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	TotalTimeouts        int     `json:"total_timeouts"`
	TotalErrors          int     `json:"total_errors"`
}

// Response is the consumer-facing scan envelope.
type Response struct {
	Success                 bool                         `json:"success"`
	ScanID                  string                       `json:"scan_id"`
	UserID                  string                       `json:"user_id"`
	Error                   string                       `json:"error,omitempty"`
	ErrorType               string                       `json:"error_type,omitempty"`
	FallbackUsed            bool                         `json:"fallback_used,omitempty"`
	Source                  string                       `json:"source,omitempty"`
	Opportunities           []domain.Opportunity         `json:"opportunities"`
	TotalOpportunities      int                          `json:"total_opportunities"`
	SignalAnalysis          SignalAnalysis               `json:"signal_analysis"`
	ThresholdTransparency   ThresholdTransparency        `json:"threshold_transparency"`
	UserProfile             UserProfileView              `json:"user_profile"`
	StrategyPerformance     map[string]StrategyScanStats `json:"strategy_performance"`
	AssetDiscovery          AssetDiscovery               `json:"asset_discovery"`
	StrategyRecommendations []Recommendation             `json:"strategy_recommendations,omitempty"`
	ExecutionTimeMS         float64                      `json:"execution_time_ms"`
	LastUpdated             time.Time                    `json:"last_updated"`
	PerformanceMetrics      PerformanceMetrics           `json:"performance_metrics"`
	Metadata                map[string]interface{}       `json:"metadata,omitempty"`
}
