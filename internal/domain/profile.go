package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// UserTier grades a user by the size and cost of their strategy portfolio.
type UserTier string

const (
	UserTierBasic      UserTier = "basic"
	UserTierPro        UserTier = "pro"
	UserTierEnterprise UserTier = "enterprise"
)

// UserOpportunityProfile captures everything the orchestrator needs to know
// about a user for one discovery run.
type UserOpportunityProfile struct {
	UserID                   string    `json:"user_id"`
	ActiveStrategyCount      int       `json:"active_strategy_count"`
	TotalMonthlyStrategyCost float64   `json:"total_monthly_strategy_cost"`
	UserTier                 UserTier  `json:"user_tier"`
	MaxAssetTier             Tier      `json:"max_asset_tier"`
	OpportunityScanLimit     int       `json:"opportunity_scan_limit"`
	LastScanTime             time.Time `json:"last_scan_time,omitempty"`
	StrategyFingerprint      string    `json:"strategy_fingerprint"`
}

// DeriveUserTier applies the portfolio size/cost thresholds:
// enterprise at >=10 strategies and >=300 monthly, pro at >=5 and >=100.
func DeriveUserTier(activeStrategies int, monthlyCost float64) UserTier {
	switch {
	case activeStrategies >= 10 && monthlyCost >= 300:
		return UserTierEnterprise
	case activeStrategies >= 5 && monthlyCost >= 100:
		return UserTierPro
	default:
		return UserTierBasic
	}
}

// MaxAssetTierFor maps a user tier to the deepest asset tier it may scan.
func MaxAssetTierFor(t UserTier) Tier {
	switch t {
	case UserTierEnterprise:
		return TierInstitutional
	case UserTierPro:
		return TierProfessional
	default:
		return TierRetail
	}
}

// ScanLimitFor maps a user tier to its opportunity scan limit.
func ScanLimitFor(t UserTier) int {
	switch t {
	case UserTierEnterprise:
		return 1000
	case UserTierPro:
		return 200
	default:
		return 50
	}
}

// SymbolLimitFor maps a user tier to the symbol universe cap used by the
// resolver: basic 50, pro 200, enterprise 1000.
func SymbolLimitFor(t UserTier) int {
	return ScanLimitFor(t)
}

// StrategyFingerprint hashes the set of active strategy IDs. The hash is
// order-insensitive: two portfolios with equal ID sets fingerprint equally.
func StrategyFingerprint(strategyIDs []string) string {
	ids := make([]string, 0, len(strategyIDs))
	seen := make(map[string]bool, len(strategyIDs))
	for _, id := range strategyIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return hex.EncodeToString(sum[:16])
}

// BuildProfile derives the full profile from a resolved portfolio.
func BuildProfile(userID string, strategyIDs []string, monthlyCost float64) *UserOpportunityProfile {
	tier := DeriveUserTier(len(strategyIDs), monthlyCost)
	return &UserOpportunityProfile{
		UserID:                   userID,
		ActiveStrategyCount:      len(strategyIDs),
		TotalMonthlyStrategyCost: monthlyCost,
		UserTier:                 tier,
		MaxAssetTier:             MaxAssetTierFor(tier),
		OpportunityScanLimit:     ScanLimitFor(tier),
		StrategyFingerprint:      StrategyFingerprint(strategyIDs),
	}
}
