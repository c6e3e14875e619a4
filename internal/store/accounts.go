package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// AccountStore reads the user's exchange account table.
type AccountStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAccountStore wraps db with the default query timeout.
func NewAccountStore(db *sqlx.DB) *AccountStore {
	return &AccountStore{db: db, timeout: defaultQueryTimeout}
}

// ActiveExchanges returns exchange names with an ACTIVE, trading-enabled
// account for the user, highest-priority first by activation recency.
func (s *AccountStore) ActiveExchanges(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT exchange_name
		FROM exchange_accounts
		WHERE user_id = $1 AND status = 'ACTIVE' AND trading_enabled = TRUE
		ORDER BY updated_at DESC`

	var names []string
	if err := s.db.SelectContext(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("query active exchanges: %w", err)
	}
	return names, nil
}

// AllowedSymbols returns the union of the user's per-account symbol
// allow-lists. An empty result means no restriction was configured.
func (s *AccountStore) AllowedSymbols(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT allowed_symbols
		FROM exchange_accounts
		WHERE user_id = $1 AND status = 'ACTIVE' AND trading_enabled = TRUE`

	rows, err := s.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query allowed symbols: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []string
	for rows.Next() {
		var symbols pq.StringArray
		if err := rows.Scan(&symbols); err != nil {
			return nil, fmt.Errorf("scan allowed symbols: %w", err)
		}
		for _, sym := range symbols {
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out, rows.Err()
}
