// Package config loads runtime settings for the credit ledger service.
// Values come from three layers: built-in defaults, an optional TOML file,
// and environment variables, each overriding the one before it.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	X402      X402Config      `toml:"x402"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Logging   LoggingConfig   `toml:"logging"`
	CORS      CORSConfig      `toml:"cors"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Cache     CacheConfig     `toml:"cache"`
}

type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Environment string `toml:"environment"`
	Debug       bool   `toml:"debug"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// X402Config controls the paywall on the read endpoints. Prices are decimal
// strings in the TOML file ("0.002"), in USD.
type X402Config struct {
	Enabled             bool            `toml:"enabled"`
	WalletAddress       string          `toml:"wallet_address"`
	APIKey              string          `toml:"api_key"`
	APIURL              string          `toml:"api_url"`
	CreditScorePrice    decimal.Decimal `toml:"credit_score_price"`
	PaymentHistoryPrice decimal.Decimal `toml:"payment_history_price"`
}

type ScoringConfig struct {
	DefaultScore     int     `toml:"default_score"`
	MaxScore         int     `toml:"max_score"`
	MinScore         int     `toml:"min_score"`
	OnTimeBonus      float64 `toml:"on_time_bonus"`
	MaxOnTimeBonus   float64 `toml:"max_on_time_bonus"`
	LatePenaltyTier1 float64 `toml:"late_penalty_tier1"`
	LatePenaltyTier2 float64 `toml:"late_penalty_tier2"`
	LatePenaltyTier3 float64 `toml:"late_penalty_tier3"`
	DefaultedPenalty float64 `toml:"defaulted_penalty"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool `toml:"enabled"`
	RequestsPerMinute int  `toml:"requests_per_minute"`
}

type CacheConfig struct {
	Enabled    bool `toml:"enabled"`
	TTLSeconds int  `toml:"ttl_seconds"`
}

const (
	envHost        = "CREDITLEDGER_HOST"
	envPort        = "CREDITLEDGER_PORT"
	envEnvironment = "CREDITLEDGER_ENV"
	envDBPath      = "CREDITLEDGER_DB_PATH"
	envX402Enabled = "CREDITLEDGER_X402_ENABLED"
	envX402Wallet  = "CREDITLEDGER_X402_WALLET_ADDRESS"
	envX402APIKey  = "CREDITLEDGER_X402_API_KEY"
	envLogLevel    = "CREDITLEDGER_LOG_LEVEL"
	envLogFormat   = "CREDITLEDGER_LOG_FORMAT"
	envPortShort   = "PORT"
	envDBPathShort = "DB_PATH"
)

// Default returns the development configuration the service ships with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8000,
			Environment: "development",
			Debug:       true,
		},
		Database: DatabaseConfig{
			Path: "creditledger.db",
		},
		X402: X402Config{
			Enabled:             true,
			APIURL:              "https://api.paywithlocus.com",
			CreditScorePrice:    decimal.RequireFromString("0.002"),
			PaymentHistoryPrice: decimal.RequireFromString("0.001"),
		},
		Scoring: ScoringConfig{
			DefaultScore:     70,
			MaxScore:         100,
			MinScore:         0,
			OnTimeBonus:      0.5,
			MaxOnTimeBonus:   30,
			LatePenaltyTier1: 2,
			LatePenaltyTier2: 5,
			LatePenaltyTier3: 10,
			DefaultedPenalty: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 100,
		},
		Cache: CacheConfig{
			Enabled:    false,
			TTLSeconds: 300,
		},
	}
}

// Load builds the effective configuration. A missing path skips the file
// layer entirely; environment variables are applied last either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = stringFromEnv(envHost, cfg.Server.Host)
	cfg.Server.Port = intFromEnv(envPort, intFromEnv(envPortShort, cfg.Server.Port))
	cfg.Server.Environment = stringFromEnv(envEnvironment, cfg.Server.Environment)
	cfg.Database.Path = stringFromEnv(envDBPath, stringFromEnv(envDBPathShort, cfg.Database.Path))
	cfg.X402.Enabled = boolFromEnv(envX402Enabled, cfg.X402.Enabled)
	cfg.X402.WalletAddress = stringFromEnv(envX402Wallet, cfg.X402.WalletAddress)
	cfg.X402.APIKey = stringFromEnv(envX402APIKey, cfg.X402.APIKey)
	cfg.Logging.Level = stringFromEnv(envLogLevel, cfg.Logging.Level)
	cfg.Logging.Format = stringFromEnv(envLogFormat, cfg.Logging.Format)
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate ensures the configuration is internally consistent. Production
// additionally requires a receiving wallet for the paywall, an API key, and
// debug mode off.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("environment must be development or production, got %q", c.Server.Environment)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Logging.Format)
	}
	if c.Scoring.MaxScore <= c.Scoring.MinScore {
		return fmt.Errorf("max_score must be greater than min_score")
	}
	if c.Scoring.DefaultScore < c.Scoring.MinScore || c.Scoring.DefaultScore > c.Scoring.MaxScore {
		return fmt.Errorf("default_score %d outside [%d, %d]",
			c.Scoring.DefaultScore, c.Scoring.MinScore, c.Scoring.MaxScore)
	}
	if c.X402.CreditScorePrice.IsNegative() || c.X402.PaymentHistoryPrice.IsNegative() {
		return fmt.Errorf("x402 prices must be non-negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be at least 1 when rate limiting is enabled")
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds < 1 {
		return fmt.Errorf("ttl_seconds must be at least 1 when the score cache is enabled")
	}

	if c.IsProduction() {
		var issues []string
		if c.X402.Enabled && c.X402.WalletAddress == "" {
			issues = append(issues, "x402 wallet_address must be set in production")
		}
		if c.X402.APIKey == "" {
			issues = append(issues, "x402 api_key must be set in production")
		}
		if c.Server.Debug {
			issues = append(issues, "debug must be disabled in production")
		}
		if len(issues) > 0 {
			return fmt.Errorf("production config: %s", strings.Join(issues, "; "))
		}
	}
	return nil
}

// Sanitized returns a copy with secrets masked for startup logging.
func (c *Config) Sanitized() Config {
	clone := *c
	if clone.X402.APIKey != "" {
		clone.X402.APIKey = maskSecret(clone.X402.APIKey)
	}
	return clone
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "***"
}

// --- env helpers ---

func stringFromEnv(key, fallback string) string {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func intFromEnv(key string, fallback int) int {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolFromEnv(key string, fallback bool) bool {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}
