package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/opportune/internal/store"
)

func TestCatalogShape(t *testing.T) {
	all := All()
	assert.Len(t, all, 14)

	for id, m := range all {
		assert.Equal(t, id, m.ID)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.Benefit)
		if m.Tier == TierFree {
			assert.Zero(t, m.MonthlyCreditCost, "%s: free tier must cost nothing", id)
		} else {
			assert.Positive(t, m.MonthlyCreditCost, "%s: paid tier must have a cost", id)
		}
	}
}

func TestDefaultFreeStrategiesExistAndAreFree(t *testing.T) {
	for _, id := range DefaultFreeStrategies() {
		m, ok := Get(id)
		require.True(t, ok, id)
		assert.True(t, m.Free(), id)
	}
}

type fakeReader struct {
	rows        []store.UserStrategy
	err         error
	provisioned []string
}

func (f *fakeReader) ActiveStrategies(ctx context.Context, userID string) ([]store.UserStrategy, error) {
	return f.rows, f.err
}

func (f *fakeReader) ProvisionStrategies(ctx context.Context, userID string, ids []string) error {
	f.provisioned = append(f.provisioned, ids...)
	return f.err
}

func TestUserPortfolio(t *testing.T) {
	now := time.Now().UTC()
	reader := &fakeReader{rows: []store.UserStrategy{
		{StrategyID: "risk_management", MonthlyCost: 0, ActivatedAt: now},
		{StrategyID: "spot_mean_reversion", MonthlyCost: 25, ActivatedAt: now},
		{StrategyID: "retired_strategy", MonthlyCost: 99, ActivatedAt: now},
	}}
	svc := NewPortfolioService(reader, zerolog.Nop())

	p, err := svc.UserPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, p.Success)
	require.Len(t, p.ActiveStrategies, 2, "unknown strategy dropped")
	assert.Equal(t, 25.0, p.TotalMonthlyCost, "free strategy contributes nothing")
	assert.Equal(t, []string{"risk_management", "spot_mean_reversion"}, p.StrategyIDs())
}

func TestUserPortfolioFreeNeverBilled(t *testing.T) {
	// Even if the subscription row carries a stale cost, a catalog-free
	// strategy stays free.
	reader := &fakeReader{rows: []store.UserStrategy{
		{StrategyID: "spot_momentum_strategy", MonthlyCost: 10},
	}}
	svc := NewPortfolioService(reader, zerolog.Nop())

	p, err := svc.UserPortfolio(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, p.TotalMonthlyCost)
	assert.Zero(t, p.ActiveStrategies[0].MonthlyCost)
}

func TestUserPortfolioError(t *testing.T) {
	svc := NewPortfolioService(&fakeReader{err: errors.New("db down")}, zerolog.Nop())
	_, err := svc.UserPortfolio(context.Background(), "u1")
	assert.Error(t, err)
}

func TestProvisionDefaults(t *testing.T) {
	reader := &fakeReader{}
	svc := NewPortfolioService(reader, zerolog.Nop())

	require.NoError(t, svc.ProvisionDefaults(context.Background(), "u1"))
	assert.Equal(t, DefaultFreeStrategies(), reader.provisioned)
}
