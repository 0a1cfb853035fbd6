package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meshpay/creditledger/internal/config"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creditledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := config.Default()

	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "development", cfg.Server.Environment)
	require.True(t, cfg.Server.Debug)
	require.Equal(t, "creditledger.db", cfg.Database.Path)

	require.True(t, cfg.X402.Enabled)
	require.Equal(t, "0.002", cfg.X402.CreditScorePrice.String())
	require.Equal(t, "0.001", cfg.X402.PaymentHistoryPrice.String())

	require.Equal(t, 70, cfg.Scoring.DefaultScore)
	require.Equal(t, 100, cfg.Scoring.MaxScore)
	require.Equal(t, 0, cfg.Scoring.MinScore)

	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Len(t, cfg.CORS.AllowedOrigins, 2)
	require.False(t, cfg.RateLimit.Enabled)
	require.False(t, cfg.Cache.Enabled)

	require.NoError(t, cfg.Validate())
	require.True(t, cfg.IsDevelopment())
	require.False(t, cfg.IsProduction())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9000

[x402]
credit_score_price = "0.005"

[scoring]
default_score = 80

[cache]
enabled = true
ttl_seconds = 60
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.True(t, cfg.X402.CreditScorePrice.Equal(decimal.RequireFromString("0.005")))
	require.Equal(t, 80, cfg.Scoring.DefaultScore)
	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, 60, cfg.Cache.TTLSeconds)

	// Keys the file does not mention keep their defaults.
	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, "0.001", cfg.X402.PaymentHistoryPrice.String())
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "[server\nport=")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("short port variable", func(t *testing.T) {
		t.Setenv("PORT", "9001")
		cfg, err := config.Load("")
		require.NoError(t, err)
		require.Equal(t, 9001, cfg.Server.Port)
	})

	t.Run("prefixed variables win", func(t *testing.T) {
		t.Setenv("PORT", "9001")
		t.Setenv("CREDITLEDGER_PORT", "9002")
		t.Setenv("DB_PATH", "short.db")
		t.Setenv("CREDITLEDGER_DB_PATH", "long.db")
		cfg, err := config.Load("")
		require.NoError(t, err)
		require.Equal(t, 9002, cfg.Server.Port)
		require.Equal(t, "long.db", cfg.Database.Path)
	})

	t.Run("x402 toggle and log level", func(t *testing.T) {
		t.Setenv("CREDITLEDGER_X402_ENABLED", "false")
		t.Setenv("CREDITLEDGER_LOG_LEVEL", "debug")
		cfg, err := config.Load("")
		require.NoError(t, err)
		require.False(t, cfg.X402.Enabled)
		require.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("environment beats file", func(t *testing.T) {
		path := writeConfigFile(t, "[server]\nport = 9000\n")
		t.Setenv("CREDITLEDGER_PORT", "9100")
		cfg, err := config.Load(path)
		require.NoError(t, err)
		require.Equal(t, 9100, cfg.Server.Port)
	})
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *config.Config) { c.Server.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *config.Config) { c.Server.Environment = "staging" },
			wantErr: "environment",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "yaml" },
			wantErr: "log format",
		},
		{
			name:    "max score below min",
			mutate:  func(c *config.Config) { c.Scoring.MaxScore = 0 },
			wantErr: "max_score",
		},
		{
			name:    "default score out of bounds",
			mutate:  func(c *config.Config) { c.Scoring.DefaultScore = 150 },
			wantErr: "default_score",
		},
		{
			name:    "negative price",
			mutate:  func(c *config.Config) { c.X402.CreditScorePrice = decimal.RequireFromString("-1") },
			wantErr: "non-negative",
		},
		{
			name: "rate limit without budget",
			mutate: func(c *config.Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerMinute = 0
			},
			wantErr: "requests_per_minute",
		},
		{
			name: "cache without ttl",
			mutate: func(c *config.Config) {
				c.Cache.Enabled = true
				c.Cache.TTLSeconds = 0
			},
			wantErr: "ttl_seconds",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateProductionChecklist(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Environment = "production"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "wallet_address must be set in production")
	require.Contains(t, err.Error(), "api_key must be set in production")
	require.Contains(t, err.Error(), "debug must be disabled in production")

	cfg.X402.WalletAddress = "0xc0ffeec0ffeec0ffeec0ffeec0ffeec0ffee0001"
	cfg.X402.APIKey = "lk_live_abc"
	cfg.Server.Debug = false
	require.NoError(t, cfg.Validate())
}

func TestSanitizedMasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.X402.APIKey = "lk_live_abc"

	clean := cfg.Sanitized()
	require.Equal(t, "***", clean.X402.APIKey)
	require.Equal(t, "lk_live_abc", cfg.X402.APIKey)

	cfg.X402.APIKey = ""
	require.Equal(t, "", cfg.Sanitized().X402.APIKey)
}

func TestAddr(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "localhost:8000", cfg.Addr())

	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9000
	require.Equal(t, "0.0.0.0:9000", cfg.Addr())
}
