package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// UserStrategy is one row of the user's strategy subscription table.
type UserStrategy struct {
	StrategyID  string    `db:"strategy_id" json:"strategy_id"`
	MonthlyCost float64   `db:"monthly_cost" json:"monthly_cost"`
	ActivatedAt time.Time `db:"activated_at" json:"activated_at"`
}

// StrategyPerformance aggregates backtest results for one strategy.
type StrategyPerformance struct {
	StrategyID   string  `db:"strategy_id" json:"strategy_id"`
	WinRate      float64 `db:"win_rate" json:"win_rate"`
	AvgReturnPct float64 `db:"avg_return_pct" json:"avg_return_pct"`
	SharpeRatio  float64 `db:"sharpe_ratio" json:"sharpe_ratio"`
	TotalTrades  int     `db:"total_trades" json:"total_trades"`
}

// StrategyStore reads and provisions user strategy subscriptions.
type StrategyStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStrategyStore wraps db with the default query timeout.
func NewStrategyStore(db *sqlx.DB) *StrategyStore {
	return &StrategyStore{db: db, timeout: defaultQueryTimeout}
}

// ActiveStrategies returns the user's active subscriptions, oldest first so
// downstream fingerprints are stable across calls.
func (s *StrategyStore) ActiveStrategies(ctx context.Context, userID string) ([]UserStrategy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT strategy_id, monthly_cost, activated_at
		FROM user_strategies
		WHERE user_id = $1 AND status = 'active'
		ORDER BY activated_at ASC`

	var out []UserStrategy
	if err := s.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("query active strategies: %w", err)
	}
	return out, nil
}

// ProvisionStrategies activates the given strategies for the user at zero
// monthly cost, skipping any that already exist. Used for first-scan
// onboarding defaults.
func (s *StrategyStore) ProvisionStrategies(ctx context.Context, userID string, strategyIDs []string) error {
	if len(strategyIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provisioning: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO user_strategies (user_id, strategy_id, monthly_cost, status, activated_at)
		VALUES ($1, $2, 0, 'active', NOW())
		ON CONFLICT (user_id, strategy_id) DO NOTHING`

	for _, id := range strategyIDs {
		if _, err := tx.ExecContext(ctx, query, userID, id); err != nil {
			return fmt.Errorf("provision strategy %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Performance returns backtest aggregates for the given strategies. Missing
// strategies simply have no entry in the result.
func (s *StrategyStore) Performance(ctx context.Context, strategyIDs []string) (map[string]StrategyPerformance, error) {
	out := make(map[string]StrategyPerformance)
	if len(strategyIDs) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT strategy_id,
		       AVG(win_rate) AS win_rate,
		       AVG(return_pct) AS avg_return_pct,
		       AVG(sharpe_ratio) AS sharpe_ratio,
		       COALESCE(SUM(trades), 0) AS total_trades
		FROM strategy_backtests
		WHERE strategy_id = ANY($1)
		GROUP BY strategy_id`

	var rows []StrategyPerformance
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(strategyIDs)); err != nil {
		return nil, fmt.Errorf("query strategy performance: %w", err)
	}
	for _, row := range rows {
		out[row.StrategyID] = row
	}
	return out, nil
}
