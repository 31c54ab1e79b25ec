package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database     DatabaseConfig     `mapstructure:"db"`
	Server       ServerConfig       `mapstructure:"server"`
	App          AppConfig          `mapstructure:"app"`
	Solana       SolanaConfig       `mapstructure:"solana"`
	Distribution DistributionConfig `mapstructure:"distribution"`
	Reveal       RevealConfig       `mapstructure:"reveal"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	Log          LogConfig          `mapstructure:"log"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env              string        `mapstructure:"env"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	ParticipateRate  float64       `mapstructure:"participate_rate"`
	ParticipateBurst int           `mapstructure:"participate_burst"`
	AdminWallets     []string      `mapstructure:"admin_wallets"`
}

// SolanaConfig holds RPC and server wallet settings for NFT payouts
type SolanaConfig struct {
	Network          string `mapstructure:"network"`
	RPCURL           string `mapstructure:"rpc_url"`
	ServerPrivateKey string `mapstructure:"server_private_key"`
	ProgramID        string `mapstructure:"program_id"`
}

// DistributionConfig bounds payout batches
type DistributionConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PayoutTimeout time.Duration `mapstructure:"payout_timeout"`
}

// RevealConfig bounds bulk reveals
type RevealConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// JobsConfig controls background jobs
type JobsConfig struct {
	SweepEnabled bool   `mapstructure:"sweep_enabled"`
	SweepSpec    string `mapstructure:"sweep_spec"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// revealBatchCap is the hard upper bound of a bulk reveal batch
const revealBatchCap = 50

// Load loads configuration from the environment, after merging an optional .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	v := newViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "raffle_engine")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "raffle.db")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.jwt_secret", "")
	v.SetDefault("app.token_ttl", "24h")
	v.SetDefault("app.participate_rate", 2.0)
	v.SetDefault("app.participate_burst", 5)
	v.SetDefault("app.admin_wallets", []string{})
	_ = v.BindEnv("app.jwt_secret", "JWT_SECRET", "APP_JWT_SECRET")
	_ = v.BindEnv("app.admin_wallets", "ADMIN_WALLETS", "APP_ADMIN_WALLETS")

	v.SetDefault("solana.network", "devnet")
	v.SetDefault("solana.rpc_url", "")
	v.SetDefault("solana.server_private_key", "")
	v.SetDefault("solana.program_id", "")

	v.SetDefault("distribution.batch_size", 50)
	v.SetDefault("distribution.payout_timeout", "30s")
	_ = v.BindEnv("distribution.payout_timeout", "PAYOUT_TIMEOUT", "DISTRIBUTION_PAYOUT_TIMEOUT")

	v.SetDefault("reveal.batch_size", 20)
	v.SetDefault("reveal.max_batch_size", 50)

	v.SetDefault("jobs.sweep_enabled", false)
	v.SetDefault("jobs.sweep_spec", "@every 5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)
	v.SetDefault("log.disable_stacktrace", false)

	return v
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Distribution.BatchSize <= 0 {
		return fmt.Errorf("DISTRIBUTION_BATCH_SIZE must be positive")
	}
	if c.Distribution.PayoutTimeout <= 0 {
		return fmt.Errorf("PAYOUT_TIMEOUT must be positive")
	}
	if c.Reveal.MaxBatchSize <= 0 || c.Reveal.MaxBatchSize > revealBatchCap {
		return fmt.Errorf("REVEAL_MAX_BATCH_SIZE must be in [1, %d]", revealBatchCap)
	}
	if c.Reveal.BatchSize <= 0 || c.Reveal.BatchSize > c.Reveal.MaxBatchSize {
		return fmt.Errorf("REVEAL_BATCH_SIZE must be in [1, %d]", c.Reveal.MaxBatchSize)
	}

	return nil
}

// RPCEndpoint returns the configured RPC URL or the public endpoint of the network
func (c *SolanaConfig) RPCEndpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	switch c.Network {
	case "mainnet", "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	default:
		return "https://api.devnet.solana.com"
	}
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetMigrateURL returns the PostgreSQL URL form used by the migration runner
func (c *Config) GetMigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
