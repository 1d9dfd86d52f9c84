package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dwarvesf/paylink-backend/internal/types/environments"
)

type AppConfig struct {
	Environment environments.Environment `ignored:"true"`
	ApiServer   ApiServerConfig          `envconfig:"API"`
	Postgres    DBConnection             `envconfig:"DB"`
	Redis       RedisConfig              `envconfig:"REDIS"`
	Wallet      WalletConfig             `envconfig:"WALLET"`
	Vault       VaultConfig              `envconfig:"VAULT"`
	Blockchain  BlockchainConfig         `envconfig:"BLOCKCHAIN"`
	Settlement  SettlementConfig         `envconfig:"SETTLEMENT"`
	Realtime    RealtimeConfig           `envconfig:"REALTIME"`
	Oracle      OracleConfig             `envconfig:"ORACLE"`
	Cron        CronConfig               `envconfig:"CRON"`
	Telemetry   TelemetryConfig          `envconfig:"TELEMETRY"`
}

type ApiServerConfig struct {
	Port           string `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS"`
	AdminAPIKey    string `envconfig:"ADMIN_KEY"`
}

type DBConnection struct {
	Host string `envconfig:"HOST" default:"localhost"`
	Port string `envconfig:"PORT" default:"5432"`
	User string `envconfig:"USER"`
	Name string `envconfig:"NAME"`
	Pass string `envconfig:"PASS"`

	SSLMode string `envconfig:"SSL_MODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
}

// DSN is the libpq keyword/value connection string.
func (c DBConnection) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Pass, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type WalletConfig struct {
	// EncryptionSecret is used when Vault is not configured.
	EncryptionSecret string `envconfig:"ENCRYPTION_SECRET"`
	VaultSecretKey   string `envconfig:"VAULT_SECRET_KEY" default:"wallet_encryption_secret"`
	MaxAttempts      int    `envconfig:"MAX_ATTEMPTS" default:"3"`
}

type VaultConfig struct {
	Addr         string `envconfig:"ADDR"`
	KVSecretPath string `envconfig:"KV_SECRET_PATH"`
	Role         string `envconfig:"ROLE"`
	TokenPath    string `envconfig:"TOKEN_PATH" default:"/var/run/secrets/kubernetes.io/serviceaccount/token"`
}

type BlockchainConfig struct {
	ChainsFile         string        `envconfig:"CHAINS_FILE" default:"chains.yaml"`
	TreasuryPrivateKey string        `envconfig:"TREASURY_PRIVATE_KEY"`
	FeeWalletAddress   string        `envconfig:"FEE_WALLET_ADDRESS"`
	TxTimeout          time.Duration `envconfig:"TX_TIMEOUT" default:"3m"`
	GasTopUpMultiplier int64         `envconfig:"GAS_TOP_UP_MULTIPLIER" default:"2"`
	Chains             []ChainConfig `ignored:"true"`
}

type SettlementConfig struct {
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	RPCTimeout      time.Duration `envconfig:"RPC_TIMEOUT" default:"10s"`
	FinalityTimeout time.Duration `envconfig:"FINALITY_TIMEOUT" default:"6h"`
	MaxRetry        int           `envconfig:"MAX_RETRY" default:"3"`
	RetryBaseDelay  time.Duration `envconfig:"RETRY_BASE_DELAY" default:"10s"`
	RetryMaxDelay   time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5m"`
	Concurrency     int           `envconfig:"CONCURRENCY" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"3m"`
	PaymentLinkTTL  time.Duration `envconfig:"PAYMENT_LINK_TTL" default:"30m"`
	PlatformFeeBps  int64         `envconfig:"PLATFORM_FEE_BPS" default:"100"`
	DefaultSlippage uint32        `envconfig:"DEFAULT_SLIPPAGE_BPS" default:"50"`
}

type RealtimeConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	KeyPrefix     string        `envconfig:"KEY_PREFIX" default:"realtime:"`
	Channel       string        `envconfig:"CHANNEL" default:"realtime:events"`
	ConnectionTTL time.Duration `envconfig:"CONNECTION_TTL" default:"24h"`
	OwnershipTTL  time.Duration `envconfig:"OWNERSHIP_TTL" default:"1h"`
	RateLimit     int           `envconfig:"RATE_LIMIT" default:"60"`
	RateWindow    time.Duration `envconfig:"RATE_WINDOW" default:"60s"`
}

type OracleConfig struct {
	BaseURL  string        `envconfig:"BASE_URL" default:"https://api.coingecko.com/api/v3"`
	APIKey   string        `envconfig:"API_KEY"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"1m"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type CronConfig struct {
	ExpirySpec       string `envconfig:"EXPIRY_SPEC" default:"@every 1m"`
	UptimeSpec       string `envconfig:"UPTIME_SPEC" default:"@every 5m"`
	UptimeWebhookURL string `envconfig:"UPTIME_WEBHOOK_URL"`
	DepositSpec      string `envconfig:"DEPOSIT_SPEC" default:"@every 15s"`
}

// TelemetryConfig bounds one deposit scan. Lookback is where a chain without
// a stored cursor starts, counted back from the head.
type TelemetryConfig struct {
	MaxBlocks  uint64 `envconfig:"MAX_BLOCKS" default:"200"`
	Lookback   uint64 `envconfig:"LOOKBACK" default:"50"`
	CursorKey  string `envconfig:"CURSOR_KEY" default:"telemetry:cursor:"`
	LinksBatch int    `envconfig:"LINKS_BATCH" default:"500"`
}

// New loads .env.<APP_ENV> (never overriding variables that already exist),
// parses the environment and the chain definitions file. It panics on
// malformed configuration.
func New() *AppConfig {
	env := environments.Parse(os.Getenv("APP_ENV"))

	// this will not override env variables if they already exist
	_ = godotenv.Load(".env." + string(env))

	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(env environments.Environment) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Environment = env

	if cfg.Blockchain.ChainsFile != "" {
		chains, err := LoadChains(cfg.Blockchain.ChainsFile)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		cfg.Blockchain.Chains = chains
	}

	return cfg, nil
}

// Chain returns the chain definition for a chain id.
func (c *AppConfig) Chain(chainID uint64) (ChainConfig, bool) {
	for _, chain := range c.Blockchain.Chains {
		if chain.ID == chainID {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

func (c *AppConfig) AllowedOrigins() []string {
	if c.ApiServer.AllowedOrigins == "" {
		return []string{"*"}
	}
	return strings.Split(c.ApiServer.AllowedOrigins, ";")
}
