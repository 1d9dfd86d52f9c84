package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/paylink-backend/internal/types/environments"
)

const sampleChains = `
chains:
  - id: 8453
    name: base
    rpc_url: https://mainnet.base.org
    native_symbol: ETH
    required_confirmations: 12
    price_platform: base
    price_native_id: ethereum
    stablecoins:
      USDC: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
  - id: 137
    name: polygon
    rpc_url: https://polygon-rpc.com
    native_symbol: POL
    native_decimals: 18
`

func writeChains(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BLOCKCHAIN_CHAINS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load(environments.Test)
	require.NoError(t, err)

	assert.Equal(t, environments.Test, cfg.Environment)
	assert.Equal(t, "8080", cfg.ApiServer.Port)
	assert.Equal(t, 5*time.Second, cfg.Settlement.PollInterval)
	assert.Equal(t, 6*time.Hour, cfg.Settlement.FinalityTimeout)
	assert.Equal(t, 3, cfg.Settlement.MaxRetry)
	assert.Equal(t, 5, cfg.Settlement.Concurrency)
	assert.Equal(t, 3*time.Minute, cfg.Settlement.ShutdownTimeout)
	assert.Equal(t, 60, cfg.Realtime.RateLimit)
	assert.Equal(t, time.Minute, cfg.Realtime.RateWindow)
	assert.Equal(t, 24*time.Hour, cfg.Realtime.ConnectionTTL)
	assert.Equal(t, time.Hour, cfg.Realtime.OwnershipTTL)
	assert.Equal(t, 3, cfg.Wallet.MaxAttempts)
	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.ConnMaxLifetime)
	assert.Equal(t, uint64(200), cfg.Telemetry.MaxBlocks)
	assert.Equal(t, "@every 15s", cfg.Cron.DepositSpec)
	assert.Empty(t, cfg.Blockchain.Chains)
}

func TestDBConnection_DSN(t *testing.T) {
	conn := DBConnection{Host: "db", Port: "5433", User: "paylink", Pass: "s3cret", Name: "paylink", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=paylink password=s3cret dbname=paylink sslmode=require", conn.DSN())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BLOCKCHAIN_CHAINS_FILE", writeChains(t, sampleChains))
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("SETTLEMENT_POLL_INTERVAL", "2s")
	t.Setenv("REALTIME_RATE_LIMIT", "10")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example;https://b.example")

	cfg, err := Load(environments.Production)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Settlement.PollInterval)
	assert.Equal(t, 10, cfg.Realtime.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())

	require.Len(t, cfg.Blockchain.Chains, 2)
	base, ok := cfg.Chain(8453)
	require.True(t, ok)
	assert.Equal(t, uint64(12), base.RequiredConfirmations)
	assert.Equal(t, 18, base.NativeDecimals)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", base.Stablecoins["USDC"])

	polygon, ok := cfg.Chain(137)
	require.True(t, ok)
	assert.Equal(t, uint64(1), polygon.RequiredConfirmations)

	_, ok = cfg.Chain(1)
	assert.False(t, ok)
}

func TestLoadChains_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing id",
			content: "chains:\n  - rpc_url: http://x\n",
			errMsg:  "id is required",
		},
		{
			name:    "missing rpc url",
			content: "chains:\n  - id: 1\n",
			errMsg:  "rpc_url is required",
		},
		{
			name:    "duplicate",
			content: "chains:\n  - id: 1\n    rpc_url: http://x\n  - id: 1\n    rpc_url: http://y\n",
			errMsg:  "declared twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadChains(writeChains(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
