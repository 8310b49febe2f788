package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServiceConfig drives the web front-end.
type ServiceConfig struct {
	HTTPPort             int           `yaml:"http_port"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
	SessionSecret        string        `yaml:"session_secret"`
	SessionMaxAge        time.Duration `yaml:"session_max_age"`
	IdempotencyWindow    time.Duration `yaml:"idempotency_window"`
	IdempotencyStore     string        `yaml:"idempotency_store"` // memory, file or postgres
	IdempotencyStorePath string        `yaml:"idempotency_store_path"`

	// SessionIdleTimeout drops server-side sessions nobody used for this long.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	// MaxSessions caps live server-side sessions; the least recently used
	// one is dropped to make room.
	MaxSessions int `yaml:"max_sessions"`
	// FormWait is how long a form post waits for its transaction before
	// redirecting to the page, which then shows it as pending.
	FormWait time.Duration `yaml:"form_wait"`
}

type ChainConfig struct {
	RPCURL     string        `yaml:"rpc_url"`
	ChainID    int64         `yaml:"chain_id"`
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
	// TxTimeout bounds submission plus confirmation of one transaction.
	TxTimeout time.Duration `yaml:"tx_timeout"`
}

// WalletConfig describes the wallet capability available to the client.
// An empty kind means no wallet is installed.
type WalletConfig struct {
	Kind       string `yaml:"kind"` // rpc, key or none
	RPCURL     string `yaml:"rpc_url"`
	PrivateKey string `yaml:"private_key"`
}

type ContractConfig struct {
	Address         string `yaml:"address"`
	DepositAmount   string `yaml:"deposit_amount"`
	WithdrawAmount  string `yaml:"withdraw_amount"`
	Unit            string `yaml:"unit"`
	DisplayDecimals int32  `yaml:"display_decimals"`
}

type NotificationConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ProfileConfig selects where account holder details come from.
type ProfileConfig struct {
	Source string        `yaml:"source"` // static or postgres
	Static StaticProfile `yaml:"static"`
}

type StaticProfile struct {
	HolderName            string `yaml:"holder_name"`
	Education             string `yaml:"education"`
	CreditScore           int    `yaml:"credit_score"`
	Loans                 string `yaml:"loans"`
	FixedDeposit          string `yaml:"fixed_deposit"`
	AverageMonthlyBalance string `yaml:"average_monthly_balance"`
	FatherName            string `yaml:"father_name"`
	MotherName            string `yaml:"mother_name"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// AppConfig is the full configuration of the ATM client.
type AppConfig struct {
	Service      ServiceConfig      `yaml:"service"`
	Chain        ChainConfig        `yaml:"chain"`
	Wallet       WalletConfig       `yaml:"wallet"`
	Contract     ContractConfig     `yaml:"contract"`
	Notification NotificationConfig `yaml:"notification"`
	Profile      ProfileConfig      `yaml:"profile"`
	Postgres     PostgresConfig     `yaml:"postgres"`
}

const (
	defaultConfigPath    = "atm.yml"
	defaultContract      = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	defaultRPCURL        = "http://127.0.0.1:8545"
	defaultHTTPPort      = 3000
	defaultNotifyTTL     = 5 * time.Second
	defaultDepositAmount = "50"
	defaultWithdrawAmt   = "30"
)

// Load reads the YAML file at path (a missing file is fine), then applies
// .env and environment overrides and fills defaults.
func Load(path string) (*AppConfig, error) {
	// .env is optional, real environment wins over it.
	_ = godotenv.Load()

	if path == "" {
		path = envOr("ATM_CONFIG", defaultConfigPath)
	}

	cfg := &AppConfig{}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when neither a file nor the
// environment sets anything.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	cfg.Service.HTTPPort = envOrInt("ATM_HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.SessionSecret = envOr("ATM_SESSION_SECRET", cfg.Service.SessionSecret)
	cfg.Service.MaxSessions = envOrInt("ATM_MAX_SESSIONS", cfg.Service.MaxSessions)
	cfg.Service.IdempotencyStore = envOr("ATM_IDEMPOTENCY_STORE", cfg.Service.IdempotencyStore)
	cfg.Service.IdempotencyStorePath = envOr("ATM_IDEMPOTENCY_STORE_PATH", cfg.Service.IdempotencyStorePath)

	cfg.Chain.RPCURL = envOr("ATM_CHAIN_RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.ChainID = int64(envOrInt("ATM_CHAIN_ID", int(cfg.Chain.ChainID)))

	cfg.Wallet.Kind = envOr("ATM_WALLET_KIND", cfg.Wallet.Kind)
	cfg.Wallet.RPCURL = envOr("ATM_WALLET_RPC_URL", cfg.Wallet.RPCURL)
	cfg.Wallet.PrivateKey = envOr("ATM_WALLET_PRIVATE_KEY", cfg.Wallet.PrivateKey)

	cfg.Contract.Address = envOr("ATM_CONTRACT_ADDRESS", cfg.Contract.Address)

	cfg.Profile.Source = envOr("ATM_PROFILE_SOURCE", cfg.Profile.Source)
	cfg.Postgres.DSN = envOr("ATM_POSTGRES_DSN", cfg.Postgres.DSN)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = defaultHTTPPort
	}
	if cfg.Service.ReadHeaderTimeout == 0 {
		cfg.Service.ReadHeaderTimeout = 15 * time.Second
	}
	if cfg.Service.ShutdownTimeout == 0 {
		cfg.Service.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Service.SessionMaxAge == 0 {
		cfg.Service.SessionMaxAge = 24 * time.Hour
	}
	if cfg.Service.SessionIdleTimeout == 0 {
		cfg.Service.SessionIdleTimeout = 30 * time.Minute
	}
	if cfg.Service.MaxSessions == 0 {
		cfg.Service.MaxSessions = 1000
	}
	if cfg.Service.FormWait == 0 {
		cfg.Service.FormWait = 2 * time.Second
	}
	if cfg.Service.IdempotencyWindow == 0 {
		cfg.Service.IdempotencyWindow = 10 * time.Minute
	}
	if cfg.Service.IdempotencyStore == "" {
		cfg.Service.IdempotencyStore = "memory"
	}
	if cfg.Service.IdempotencyStorePath == "" {
		cfg.Service.IdempotencyStorePath = filepath.Join(os.TempDir(), "atm-idem.json")
	}

	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = defaultRPCURL
	}
	if cfg.Chain.RPCTimeout == 0 {
		cfg.Chain.RPCTimeout = 30 * time.Second
	}
	if cfg.Chain.TxTimeout == 0 {
		cfg.Chain.TxTimeout = 2 * time.Minute
	}
	if cfg.Wallet.Kind == "rpc" && cfg.Wallet.RPCURL == "" {
		cfg.Wallet.RPCURL = cfg.Chain.RPCURL
	}

	if cfg.Contract.Address == "" {
		cfg.Contract.Address = defaultContract
	}
	if cfg.Contract.DepositAmount == "" {
		cfg.Contract.DepositAmount = defaultDepositAmount
	}
	if cfg.Contract.WithdrawAmount == "" {
		cfg.Contract.WithdrawAmount = defaultWithdrawAmt
	}
	if cfg.Contract.Unit == "" {
		cfg.Contract.Unit = "ETH"
	}

	if cfg.Notification.TTL == 0 {
		cfg.Notification.TTL = defaultNotifyTTL
	}

	if cfg.Profile.Source == "" {
		cfg.Profile.Source = "static"
	}
	st := &cfg.Profile.Static
	if st.HolderName == "" {
		st.HolderName = "John Doe"
	}
	if st.Education == "" {
		st.Education = "Bachelor's Degree"
	}
	if st.CreditScore == 0 {
		st.CreditScore = 750
	}
	if st.Loans == "" {
		st.Loans = "1000"
	}
	if st.FixedDeposit == "" {
		st.FixedDeposit = "2000"
	}
	if st.AverageMonthlyBalance == "" {
		st.AverageMonthlyBalance = "5000"
	}
	if st.FatherName == "" {
		st.FatherName = "John Doe Sr."
	}
	if st.MotherName == "" {
		st.MotherName = "Jane Doe"
	}
}

// Validate rejects combinations the client cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Wallet.Kind {
	case "", "none", "rpc":
	case "key":
		if c.Wallet.PrivateKey == "" {
			return errors.New("wallet.private_key is required for wallet kind \"key\"")
		}
	default:
		return fmt.Errorf("unknown wallet kind %q", c.Wallet.Kind)
	}
	switch c.Service.IdempotencyStore {
	case "memory", "file":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres idempotency store")
		}
	default:
		return fmt.Errorf("unknown idempotency store %q", c.Service.IdempotencyStore)
	}
	switch c.Profile.Source {
	case "static":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres profile source")
		}
	default:
		return fmt.Errorf("unknown profile source %q", c.Profile.Source)
	}
	return nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
