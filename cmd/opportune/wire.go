package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/cache"
	"github.com/quantpulse/opportune/internal/config"
	"github.com/quantpulse/opportune/internal/discovery"
	"github.com/quantpulse/opportune/internal/exchanges/registry"
	"github.com/quantpulse/opportune/internal/exchanges/tickers"
	"github.com/quantpulse/opportune/internal/httpx"
	"github.com/quantpulse/opportune/internal/metrics"
	"github.com/quantpulse/opportune/internal/prices"
	"github.com/quantpulse/opportune/internal/store"
	"github.com/quantpulse/opportune/internal/strategy/catalog"
	"github.com/quantpulse/opportune/internal/strategy/router"
	"github.com/quantpulse/opportune/internal/universe"
)

// engine holds the fully wired pipeline plus the pieces the commands need.
type engine struct {
	cfg          config.Config
	orchestrator *discovery.Orchestrator
	discoverer   *registry.Discoverer
	metaSource   registry.MetadataSource
	collector    *metrics.Collector
	progress     *discovery.ProgressBus
	close        func()
}

// buildEngine wires every layer from configuration. The database is
// required: portfolios and exchange accounts live there.
func buildEngine(cfg config.Config, log zerolog.Logger) (*engine, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required (config database.dsn or OPPORTUNE_DATABASE_DSN)")
	}
	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	redisStore := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "")
	local := cache.NewMemoryStore(8192)
	shared := cache.NewLayered(redisStore, local, log)

	collector := metrics.New()
	client := httpx.New(cfg.Exchanges.HTTPTimeout, log)

	reg := registry.New(log)
	discoverer := registry.NewDiscoverer(client, reg, cfg.Exchanges.DiscoverySem, cfg.Exchanges.ProbeBudget, log)
	metaSource := registry.NewCoinGeckoSource(client)

	fetcher := tickers.NewFetcher(client, shared, cfg.Exchanges.RateLimitWindow, cfg.Exchanges.RateLimitCooldown, collector, log)
	universeDiscovery := universe.NewDiscovery(fetcher, reg, shared, cfg.Discovery, log)

	accounts := store.NewAccountStore(db)
	strategies := store.NewStrategyStore(db)
	resolver := universe.NewResolver(accounts, universeDiscovery, shared, local, cfg.Discovery, log)

	priceService := prices.New(client, reg, shared, cfg.Discovery, log)
	portfolio := catalog.NewPortfolioService(strategies, log)
	exec := router.New(priceService, strategies, log)

	progress := discovery.NewProgressBus()
	oppCache := discovery.NewOpportunityCache(shared, cfg.Discovery, log)
	fallback := discovery.NewFallback(shared, collector, log)
	orchestrator := discovery.NewOrchestrator(
		portfolio, universeDiscovery, resolver, priceService, exec,
		oppCache, fallback, collector, progress, cfg.Discovery, log,
	)

	return &engine{
		cfg:          cfg,
		orchestrator: orchestrator,
		discoverer:   discoverer,
		metaSource:   metaSource,
		collector:    collector,
		progress:     progress,
		close: func() {
			local.Stop()
			_ = db.Close()
		},
	}, nil
}

// refreshExchanges imports dynamically discovered exchanges on top of the
// static table. Failures keep the static table, never block startup.
func (e *engine) refreshExchanges(ctx context.Context, log zerolog.Logger) {
	imported := e.discoverer.Run(ctx, e.metaSource)
	log.Info().Int("imported", imported).Msg("exchange discovery pass finished")
}
