package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 15*time.Second, cfg.Exchanges.HTTPTimeout)
	assert.Equal(t, 300*time.Second, cfg.Discovery.UniverseReadTTL)
	assert.Equal(t, uint32(3), cfg.Discovery.BreakerThreshold)
	assert.Equal(t, []string{"binance", "kraken", "kucoin"}, cfg.Discovery.DefaultExchanges)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  listen: ":9000"
discovery:
  scanner_semaphore: 5
`), 0o644))

	t.Setenv("OPPORTUNE_REDIS_ADDR", "redis.internal:6380")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Listen)
	assert.Equal(t, 5, cfg.Discovery.ScannerSemaphore)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	// Untouched values keep defaults.
	assert.Equal(t, 900*time.Second, cfg.Discovery.OpportunityTTL)
}

func TestStageTimeout(t *testing.T) {
	d := Default().Discovery // worker budget 120s

	// Bounded below by 60s, above by worker budget - 5s.
	assert.Equal(t, 60*time.Second, d.StageTimeout(30*time.Second))
	assert.Equal(t, 95*time.Second, d.StageTimeout(100*time.Second))
	assert.Equal(t, 115*time.Second, d.StageTimeout(10*time.Minute))
}
