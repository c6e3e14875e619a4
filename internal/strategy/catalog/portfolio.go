package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/store"
)

// StrategyReader is the subscription-table surface the portfolio service
// needs.
type StrategyReader interface {
	ActiveStrategies(ctx context.Context, userID string) ([]store.UserStrategy, error)
	ProvisionStrategies(ctx context.Context, userID string, strategyIDs []string) error
}

// ActiveStrategy is one activated strategy with catalog metadata attached.
type ActiveStrategy struct {
	StrategyID  string  `json:"strategy_id"`
	Name        string  `json:"name"`
	MonthlyCost float64 `json:"monthly_cost"`
	Tier        Tier    `json:"tier"`
	Free        bool    `json:"free"`
}

// Portfolio is the resolved view of a user's activated strategies.
type Portfolio struct {
	Success          bool             `json:"success"`
	UserID           string           `json:"user_id"`
	ActiveStrategies []ActiveStrategy `json:"active_strategies"`
	TotalMonthlyCost float64          `json:"total_monthly_cost"`
}

// StrategyIDs lists the active strategy ids in activation order.
func (p *Portfolio) StrategyIDs() []string {
	out := make([]string, 0, len(p.ActiveStrategies))
	for _, s := range p.ActiveStrategies {
		out = append(out, s.StrategyID)
	}
	return out
}

// PortfolioService resolves user portfolios against the catalog.
type PortfolioService struct {
	reader StrategyReader
	log    zerolog.Logger
}

// NewPortfolioService wires the portfolio service.
func NewPortfolioService(reader StrategyReader, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		reader: reader,
		log:    log.With().Str("component", "portfolio").Logger(),
	}
}

// UserPortfolio resolves the user's active strategies with catalog metadata.
// Subscriptions to unknown strategy ids are logged and skipped. Billing uses
// the subscription row's cost; the catalog decides free status, so a free
// strategy never contributes to the total.
func (s *PortfolioService) UserPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	rows, err := s.reader.ActiveStrategies(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve portfolio for %s: %w", userID, err)
	}

	p := &Portfolio{Success: true, UserID: userID, ActiveStrategies: []ActiveStrategy{}}
	for _, row := range rows {
		meta, ok := Get(row.StrategyID)
		if !ok {
			s.log.Warn().Str("strategy_id", row.StrategyID).Str("user_id", userID).
				Msg("subscription references unknown strategy")
			continue
		}
		cost := row.MonthlyCost
		if meta.Free() {
			cost = 0
		}
		p.ActiveStrategies = append(p.ActiveStrategies, ActiveStrategy{
			StrategyID:  meta.ID,
			Name:        meta.Name,
			MonthlyCost: cost,
			Tier:        meta.Tier,
			Free:        meta.Free(),
		})
		p.TotalMonthlyCost += cost
	}
	return p, nil
}

// ProvisionDefaults activates the free onboarding strategies for the user.
func (s *PortfolioService) ProvisionDefaults(ctx context.Context, userID string) error {
	defaults := DefaultFreeStrategies()
	if err := s.reader.ProvisionStrategies(ctx, userID, defaults); err != nil {
		return fmt.Errorf("provision defaults for %s: %w", userID, err)
	}
	s.log.Info().Str("user_id", userID).Strs("strategies", defaults).
		Msg("provisioned onboarding defaults")
	return nil
}
