package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestActiveExchanges(t *testing.T) {
	db, mock := mockDB(t)
	s := NewAccountStore(db)

	mock.ExpectQuery(`SELECT exchange_name\s+FROM exchange_accounts`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exchange_name"}).
			AddRow("binance").
			AddRow("kraken"))

	got, err := s.ActiveExchanges(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"binance", "kraken"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowedSymbolsUnion(t *testing.T) {
	db, mock := mockDB(t)
	s := NewAccountStore(db)

	mock.ExpectQuery(`SELECT allowed_symbols\s+FROM exchange_accounts`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"allowed_symbols"}).
			AddRow(pq.StringArray{"BTC", "ETH"}).
			AddRow(pq.StringArray{"ETH", "SOL", ""}))

	got, err := s.AllowedSymbols(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, got, "duplicates and blanks dropped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveStrategies(t *testing.T) {
	db, mock := mockDB(t)
	s := NewStrategyStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT strategy_id, monthly_cost, activated_at\s+FROM user_strategies`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"strategy_id", "monthly_cost", "activated_at"}).
			AddRow("risk_management", 0.0, now.Add(-48*time.Hour)).
			AddRow("spot_momentum_strategy", 25.0, now))

	got, err := s.ActiveStrategies(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "risk_management", got[0].StrategyID)
	assert.Equal(t, 25.0, got[1].MonthlyCost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionStrategies(t *testing.T) {
	db, mock := mockDB(t)
	s := NewStrategyStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO user_strategies`).
		WithArgs("u1", "risk_management").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_strategies`).
		WithArgs("u1", "portfolio_optimization").
		WillReturnResult(sqlmock.NewResult(0, 0)) // already present
	mock.ExpectCommit()

	err := s.ProvisionStrategies(context.Background(), "u1", []string{"risk_management", "portfolio_optimization"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionStrategiesEmptyNoop(t *testing.T) {
	db, mock := mockDB(t)
	s := NewStrategyStore(db)

	require.NoError(t, s.ProvisionStrategies(context.Background(), "u1", nil))
	assert.NoError(t, mock.ExpectationsWereMet(), "no queries issued for an empty list")
}

func TestPerformance(t *testing.T) {
	db, mock := mockDB(t)
	s := NewStrategyStore(db)

	mock.ExpectQuery(`SELECT strategy_id,`).
		WillReturnRows(sqlmock.NewRows([]string{"strategy_id", "win_rate", "avg_return_pct", "sharpe_ratio", "total_trades"}).
			AddRow("spot_momentum_strategy", 0.62, 3.4, 1.8, 412))

	got, err := s.Performance(context.Background(), []string{"spot_momentum_strategy", "scalping_strategy"})
	require.NoError(t, err)
	require.Contains(t, got, "spot_momentum_strategy")
	assert.Equal(t, 0.62, got["spot_momentum_strategy"].WinRate)
	_, missing := got["scalping_strategy"]
	assert.False(t, missing, "strategies without backtests have no entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}
