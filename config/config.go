package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Governance GovernanceConfig `mapstructure:"governance"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Screening  ScreeningConfig  `mapstructure:"screening"`
	Webhooks   WebhookConfig    `mapstructure:"webhooks"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the GovernanceStore backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// StatementTimeout is set as the session statement_timeout; 0 disables it.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	Migrate          bool          `mapstructure:"migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// PoolSize 0 keeps the go-redis default.
	PoolSize int `mapstructure:"pool_size"`
	// OpTimeout bounds every Redis read and write. The caches fall back to
	// the primary store on error, so it stays short.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// AuthConfig pre-seeds privileged accounts and tunes password hashing.
// Addresses listed here receive the role when they register.
type AuthConfig struct {
	Operators      []string `mapstructure:"operators"`
	Validators     []string `mapstructure:"validators"`
	HashMemoryKiB  uint32   `mapstructure:"hash_memory_kib"`
	HashIterations uint32   `mapstructure:"hash_iterations"`
	HashThreads    uint8    `mapstructure:"hash_threads"`
}

// GovernanceConfig holds the project lifecycle policy.
type GovernanceConfig struct {
	VotingPeriod              time.Duration `mapstructure:"voting_period"`
	ValidationThreshold       int           `mapstructure:"validation_threshold"`
	AutoValidateAfter         time.Duration `mapstructure:"auto_validate_after"` // 0 disables
	AutoValidateInterval      time.Duration `mapstructure:"auto_validate_interval"`
	MinVotePower              int64         `mapstructure:"min_vote_power"`
	ParticipationThresholdBps int64         `mapstructure:"participation_threshold_bps"`
	SupplyCheckInterval       time.Duration `mapstructure:"supply_check_interval"` // 0 disables
}

// ExchangeConfig seeds the exchange settings on first start.
type ExchangeConfig struct {
	Rate           string `mapstructure:"rate"` // decimal tokens per net currency unit
	FeeBasisPoints int64  `mapstructure:"fee_bps"`
	MinDonation    int64  `mapstructure:"min_donation"`
	MaxDonation    int64  `mapstructure:"max_donation"`
}

// ScreeningConfig controls AI pre-screening of submitted projects.
type ScreeningConfig struct {
	Mode        string        `mapstructure:"mode"` // disabled, local, sqs
	QueueURL    string        `mapstructure:"queue_url"`
	ScorerURL   string        `mapstructure:"scorer_url"`
	ScorerToken string        `mapstructure:"scorer_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// WebhookConfig lists event subscribers notified over HTTP.
type WebhookConfig struct {
	URLs   []string `mapstructure:"urls"`
	Secret string   `mapstructure:"secret"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLD_.
// Nested keys use underscore: WLD_DATABASE_HOST, WLD_GOVERNANCE_VOTING_PERIOD, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wildlife_dao")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.statement_timeout", "15s")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.op_timeout", "250ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "wildlife-governance")
	v.SetDefault("auth.operators", []string{})
	v.SetDefault("auth.validators", []string{})
	v.SetDefault("auth.hash_memory_kib", 64*1024)
	v.SetDefault("auth.hash_iterations", 1)
	v.SetDefault("auth.hash_threads", 4)
	v.SetDefault("governance.voting_period", "168h")
	v.SetDefault("governance.validation_threshold", 2)
	v.SetDefault("governance.auto_validate_after", "0s")
	v.SetDefault("governance.auto_validate_interval", "30s")
	v.SetDefault("governance.min_vote_power", 100)
	v.SetDefault("governance.participation_threshold_bps", 0)
	v.SetDefault("governance.supply_check_interval", "5m")
	v.SetDefault("exchange.rate", "1")
	v.SetDefault("exchange.fee_bps", 200)
	v.SetDefault("exchange.min_donation", 1)
	v.SetDefault("exchange.max_donation", 1000000)
	v.SetDefault("screening.mode", "disabled")
	v.SetDefault("screening.queue_url", "")
	v.SetDefault("screening.scorer_url", "")
	v.SetDefault("screening.scorer_token", "")
	v.SetDefault("screening.timeout", "30s")
	v.SetDefault("webhooks.urls", []string{})
	v.SetDefault("webhooks.secret", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "wildlife_dao")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// WLD_GOVERNANCE_VOTING_PERIOD -> governance.voting_period
	v.SetEnvPrefix("WLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects governance settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Screening.Mode {
	case "disabled", "local", "sqs":
	default:
		return fmt.Errorf("screening.mode must be disabled, local or sqs, got %q", c.Screening.Mode)
	}
	if c.Screening.Mode == "sqs" && c.Screening.QueueURL == "" {
		return fmt.Errorf("screening.queue_url is required when screening.mode is sqs")
	}
	if c.Governance.VotingPeriod <= 0 {
		return fmt.Errorf("governance.voting_period must be positive")
	}
	if c.Governance.ValidationThreshold < 1 {
		return fmt.Errorf("governance.validation_threshold must be at least 1")
	}
	if c.Governance.AutoValidateAfter < 0 {
		return fmt.Errorf("governance.auto_validate_after must not be negative")
	}
	if c.Governance.MinVotePower < 0 {
		return fmt.Errorf("governance.min_vote_power must not be negative")
	}
	if c.Governance.ParticipationThresholdBps < 0 || c.Governance.ParticipationThresholdBps > 10000 {
		return fmt.Errorf("governance.participation_threshold_bps must be within [0, 10000]")
	}
	return nil
}
