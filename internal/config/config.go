package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spinwheel-backend/internal/wheel"
)

// DefaultProgramID is the address the wheel program is deployed under.
const DefaultProgramID = "2Sdz9VvLEXNu9f3Gm8S1BWpPjX5ZYUW72mKjwpxB4Hac"

type Config struct {
	Port string
	Env  string

	StoreBackend string // "redis" or "memory"
	RedisURL     string
	RedisPass    string
	RedisDB      int

	JWTSecret string
	JWTExpiry time.Duration

	ProgramID    string
	SQLitePath   string
	SnapshotCron string
	PolicyFile   string
	LogLevel     string
	FaucetAmount uint64

	Policy Policy
}

// Policy holds the tunable game rules.
type Policy struct {
	DevFeeBps      uint64        `yaml:"dev_fee_bps"`
	RateLimitSpins int           `yaml:"rate_limit_spins"`
	HistoryLimit   int64         `yaml:"history_limit"`
	ChallengeTTL   time.Duration `yaml:"challenge_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

func DefaultPolicy() Policy {
	return Policy{
		DevFeeBps:      100,
		RateLimitSpins: 30,
		HistoryLimit:   50,
		ChallengeTTL:   5 * time.Minute,
		SessionTTL:     24 * time.Hour,
	}
}

// Load reads configuration from the environment and the optional policy file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		StoreBackend: getEnv("STORE_BACKEND", "redis"),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTExpiry:    24 * time.Hour,
		ProgramID:    getEnv("PROGRAM_ID", DefaultProgramID),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
		SnapshotCron: getEnv("SNAPSHOT_CRON", "0 */5 * * * *"),
		PolicyFile:   getEnv("POLICY_FILE", "policy.yaml"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		FaucetAmount: 1000 * wheel.UnitsPerToken,
		Policy:       DefaultPolicy(),
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	if v := os.Getenv("JWT_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse JWT_EXPIRY: %w", err)
		}
		cfg.JWTExpiry = d
	}
	if v := os.Getenv("FAUCET_AMOUNT"); v != "" {
		amount, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse FAUCET_AMOUNT: %w", err)
		}
		cfg.FaucetAmount = amount
	}

	if err := cfg.loadPolicy(); err != nil {
		return nil, err
	}

	if v := os.Getenv("DEV_FEE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse DEV_FEE_BPS: %w", err)
		}
		cfg.Policy.DevFeeBps = bps
	}

	if cfg.JWTSecret == "" && cfg.Env != "production" {
		cfg.JWTSecret = "dev-secret-change-me"
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadPolicy() error {
	data, err := os.ReadFile(c.PolicyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.Policy); err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}
	return nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.StoreBackend != "redis" && c.StoreBackend != "memory" {
		return fmt.Errorf("STORE_BACKEND must be redis or memory, got %q", c.StoreBackend)
	}
	if c.Policy.DevFeeBps > wheel.MaxFeeBps {
		return fmt.Errorf("dev_fee_bps %d above cap %d", c.Policy.DevFeeBps, wheel.MaxFeeBps)
	}
	if c.Policy.RateLimitSpins <= 0 {
		return fmt.Errorf("rate_limit_spins must be positive, got %d", c.Policy.RateLimitSpins)
	}
	if c.Policy.ChallengeTTL <= 0 || c.Policy.SessionTTL <= 0 {
		return fmt.Errorf("challenge_ttl and session_ttl must be positive")
	}
	if c.Policy.HistoryLimit <= 0 || c.Policy.HistoryLimit > 100 {
		c.Policy.HistoryLimit = 50
	}
	return nil
}

// IsProduction reports whether dev-only routes must be disabled.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
