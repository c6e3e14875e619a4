// Package config loads the engine configuration from YAML with environment
// overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the discovery engine. Defaults mirror
// the deployment constants; a config file only needs to override deltas.
type Config struct {
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Exchanges ExchangesConfig `yaml:"exchanges"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type ExchangesConfig struct {
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	DiscoverySem      int           `yaml:"discovery_semaphore"`
	ProbeBudget       time.Duration `yaml:"probe_budget"`
}

type DiscoveryConfig struct {
	UniverseReadTTL       time.Duration `yaml:"cache_ttl_universe_read"`
	UniverseWriteTTL      time.Duration `yaml:"cache_ttl_universe_write"`
	OpportunityTTL        time.Duration `yaml:"cache_ttl_opportunities_nonempty"`
	OpportunityEmptyTTL   time.Duration `yaml:"cache_ttl_opportunities_empty"`
	SymbolCacheTTL        time.Duration `yaml:"cache_ttl_symbols"`
	PortfolioFetchTimeout time.Duration `yaml:"portfolio_fetch_timeout"`
	BreakerThreshold      uint32        `yaml:"circuit_breaker_threshold"`
	BreakerOpenDuration   time.Duration `yaml:"circuit_breaker_open_duration"`
	ScannerSemaphore      int           `yaml:"scanner_semaphore"`
	WorkerBudget          time.Duration `yaml:"worker_budget"`
	PreloadConcurrency    int           `yaml:"price_preload_concurrency"`
	PreloadBatchSize      int           `yaml:"price_preload_batch_size"`
	PreloadTTL            time.Duration `yaml:"price_preload_ttl"`
	DefaultExchanges      []string      `yaml:"default_exchanges"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Redis: RedisConfig{Addr: "localhost:6379"},
		HTTP:  HTTPConfig{Listen: ":8090"},
		Exchanges: ExchangesConfig{
			HTTPTimeout:       15 * time.Second,
			RateLimitWindow:   60 * time.Second,
			RateLimitCooldown: 300 * time.Second,
			DiscoverySem:      10,
			ProbeBudget:       15 * time.Second,
		},
		Discovery: DiscoveryConfig{
			UniverseReadTTL:       300 * time.Second,
			UniverseWriteTTL:      600 * time.Second,
			OpportunityTTL:        900 * time.Second,
			OpportunityEmptyTTL:   120 * time.Second,
			SymbolCacheTTL:        15 * time.Minute,
			PortfolioFetchTimeout: 45 * time.Second,
			BreakerThreshold:      3,
			BreakerOpenDuration:   60 * time.Second,
			ScannerSemaphore:      3,
			WorkerBudget:          120 * time.Second,
			PreloadConcurrency:    50,
			PreloadBatchSize:      50,
			PreloadTTL:            60 * time.Second,
			DefaultExchanges:      []string{"binance", "kraken", "kucoin"},
		},
	}
}

// StageTimeout derives the per-scanner stage timeout from the worker budget:
// min(max(total-5s, 60s), worker-5s).
func (d DiscoveryConfig) StageTimeout(totalBudget time.Duration) time.Duration {
	stage := totalBudget - 5*time.Second
	if stage < 60*time.Second {
		stage = 60 * time.Second
	}
	if cap := d.WorkerBudget - 5*time.Second; stage > cap {
		stage = cap
	}
	return stage
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPPORTUNE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("OPPORTUNE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OPPORTUNE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("OPPORTUNE_HTTP_LISTEN"); v != "" {
		cfg.HTTP.Listen = v
	}
}
