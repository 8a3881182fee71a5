package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"TermPool/internal/fees"
	"TermPool/internal/fixedpoint"
	"TermPool/internal/pool"
)

// Config holds all application configuration. Fixed-point parameters
// are decimal strings so YAML never round-trips them through floats.
type Config struct {
	Pool struct {
		InitialSharePrice        string `yaml:"initial_share_price"`
		TimeStretch              string `yaml:"time_stretch"`
		PositionDuration         int64  `yaml:"position_duration_seconds"`
		CheckpointDuration       int64  `yaml:"checkpoint_duration_seconds"`
		MinimumShareReserves     string `yaml:"minimum_share_reserves"`
		MinimumTransactionAmount string `yaml:"minimum_transaction_amount"`
		SolverMaxIterations      int    `yaml:"solver_max_iterations"`
		SolverTolerance          string `yaml:"solver_tolerance"`
	} `yaml:"pool"`
	Fees struct {
		Curve      string `yaml:"curve"`
		Flat       string `yaml:"flat"`
		Governance string `yaml:"governance"`
	} `yaml:"fees"`
	Vault struct {
		InitialSharePrice string `yaml:"initial_share_price"`
	} `yaml:"vault"`
	Database struct {
		DSN           string `yaml:"dsn"`
		MigrationsDir string `yaml:"migrations_dir"`
	} `yaml:"database"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Persistence struct {
		BatchSize               int `yaml:"batch_size"`
		FlushTimeoutMS          int `yaml:"flush_timeout_ms"`
		CheckpointProjectionSec int `yaml:"checkpoint_projection_seconds"`
		SnapshotIntervalSec     int `yaml:"snapshot_interval_seconds"`
		TradeChannelBuffer      int `yaml:"trade_channel_buffer"`
	} `yaml:"persistence"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TERMPOOL_POSTGRES_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TERMPOOL_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TERMPOOL_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("TERMPOOL_MIGRATIONS_DIR"); v != "" {
		cfg.Database.MigrationsDir = v
	}
	if v := os.Getenv("TERMPOOL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Persistence.BatchSize = n
		}
	}

	// Defaults
	if cfg.Pool.InitialSharePrice == "" {
		cfg.Pool.InitialSharePrice = "1"
	}
	if cfg.Pool.TimeStretch == "" {
		cfg.Pool.TimeStretch = "0.045"
	}
	if cfg.Pool.PositionDuration == 0 {
		cfg.Pool.PositionDuration = 365 * 24 * 60 * 60
	}
	if cfg.Pool.CheckpointDuration == 0 {
		cfg.Pool.CheckpointDuration = 24 * 60 * 60
	}
	if cfg.Pool.MinimumShareReserves == "" {
		cfg.Pool.MinimumShareReserves = "10"
	}
	if cfg.Pool.MinimumTransactionAmount == "" {
		cfg.Pool.MinimumTransactionAmount = "0.001"
	}
	if cfg.Pool.SolverMaxIterations == 0 {
		cfg.Pool.SolverMaxIterations = 20
	}
	if cfg.Pool.SolverTolerance == "" {
		cfg.Pool.SolverTolerance = "0.000000001"
	}
	if cfg.Fees.Curve == "" {
		cfg.Fees.Curve = "0.1"
	}
	if cfg.Fees.Flat == "" {
		cfg.Fees.Flat = "0.01"
	}
	if cfg.Fees.Governance == "" {
		cfg.Fees.Governance = "0.15"
	}
	if cfg.Vault.InitialSharePrice == "" {
		cfg.Vault.InitialSharePrice = "1"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "postgres://localhost:5432/termpool?sslmode=disable"
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Persistence.BatchSize == 0 {
		cfg.Persistence.BatchSize = 256
	}
	if cfg.Persistence.FlushTimeoutMS == 0 {
		cfg.Persistence.FlushTimeoutMS = 500
	}
	if cfg.Persistence.CheckpointProjectionSec == 0 {
		cfg.Persistence.CheckpointProjectionSec = 15
	}
	if cfg.Persistence.SnapshotIntervalSec == 0 {
		cfg.Persistence.SnapshotIntervalSec = 300
	}
	if cfg.Persistence.TradeChannelBuffer == 0 {
		cfg.Persistence.TradeChannelBuffer = 1024
	}

	return cfg, nil
}

// FlushTimeout returns the persistence batch flush timeout.
func (c *Config) FlushTimeout() time.Duration {
	return time.Duration(c.Persistence.FlushTimeoutMS) * time.Millisecond
}

// CheckpointProjectionInterval returns how often checkpoint aggregates
// are projected to Postgres.
func (c *Config) CheckpointProjectionInterval() time.Duration {
	return time.Duration(c.Persistence.CheckpointProjectionSec) * time.Second
}

// SnapshotInterval returns how often full-state snapshots are taken.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Persistence.SnapshotIntervalSec) * time.Second
}

// PoolConfig converts the raw strings into engine parameters. The
// returned config is already validated.
func (c *Config) PoolConfig() (pool.Config, error) {
	parse := func(field, s string) (fixedpoint.FixedPoint, error) {
		v, err := fixedpoint.FromDec(s)
		if err != nil {
			return fixedpoint.Zero(), fmt.Errorf("config %s %q: %w", field, s, err)
		}
		return v, nil
	}

	mu, err := parse("pool.initial_share_price", c.Pool.InitialSharePrice)
	if err != nil {
		return pool.Config{}, err
	}
	ts, err := parse("pool.time_stretch", c.Pool.TimeStretch)
	if err != nil {
		return pool.Config{}, err
	}
	minReserves, err := parse("pool.minimum_share_reserves", c.Pool.MinimumShareReserves)
	if err != nil {
		return pool.Config{}, err
	}
	minTx, err := parse("pool.minimum_transaction_amount", c.Pool.MinimumTransactionAmount)
	if err != nil {
		return pool.Config{}, err
	}
	tolerance, err := parse("pool.solver_tolerance", c.Pool.SolverTolerance)
	if err != nil {
		return pool.Config{}, err
	}
	curveFee, err := parse("fees.curve", c.Fees.Curve)
	if err != nil {
		return pool.Config{}, err
	}
	flatFee, err := parse("fees.flat", c.Fees.Flat)
	if err != nil {
		return pool.Config{}, err
	}
	govFee, err := parse("fees.governance", c.Fees.Governance)
	if err != nil {
		return pool.Config{}, err
	}

	cfg := pool.Config{
		InitialSharePrice:        mu,
		TimeStretch:              ts,
		PositionDuration:         c.Pool.PositionDuration,
		CheckpointDuration:       c.Pool.CheckpointDuration,
		MinimumShareReserves:     minReserves,
		MinimumTransactionAmount: minTx,
		Fees:                     fees.Config{Curve: curveFee, Flat: flatFee, Governance: govFee},
		SolverMaxIterations:      c.Pool.SolverMaxIterations,
		SolverTolerance:          tolerance,
	}
	if err := cfg.Validate(); err != nil {
		return pool.Config{}, err
	}
	return cfg, nil
}

// VaultSharePrice parses the simulated vault's starting share price.
func (c *Config) VaultSharePrice() (fixedpoint.FixedPoint, error) {
	v, err := fixedpoint.FromDec(c.Vault.InitialSharePrice)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("config vault.initial_share_price %q: %w", c.Vault.InitialSharePrice, err)
	}
	return v, nil
}
