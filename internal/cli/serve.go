package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshpay/creditledger/internal/api"
	"github.com/meshpay/creditledger/internal/config"
	"github.com/meshpay/creditledger/internal/ledger"
	"github.com/meshpay/creditledger/internal/observability"
	"github.com/meshpay/creditledger/internal/repository"
	"github.com/meshpay/creditledger/internal/scoring"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credit ledger HTTP API",
	Long: `Start the HTTP server: open the ledger database, wire the scoring
engine and repositories, and listen on the configured address.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	observability.SetupLogging("creditledger", cfg.Server.Environment, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("initializing database", "path", cfg.Database.Path)
	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	agents := repository.NewAgentRepo(db)
	events := repository.NewEventRepo(db)
	engine := scoring.NewEngine(scoringParams(cfg.Scoring))

	var opts []ledger.Option
	if cfg.Cache.Enabled {
		// Size 0 leaves the cache unbounded; entries expire by TTL alone.
		opts = append(opts, ledger.WithScoreCache(0, time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	}
	svc := ledger.NewService(agents, events, engine, opts...)

	router := api.NewRouter(svc, cfg)

	if cfg.Server.Debug {
		slog.Debug("effective configuration", "config", fmt.Sprintf("%+v", cfg.Sanitized()))
	}

	slog.Info("agent credit ledger started",
		"environment", cfg.Server.Environment,
		"database", cfg.Database.Path,
		"x402_enabled", cfg.X402.Enabled,
		"rate_limit_enabled", cfg.RateLimit.Enabled,
		"score_cache_enabled", cfg.Cache.Enabled,
	)
	slog.Info("http server listening",
		"addr", cfg.Addr(),
		"endpoints", []string{
			"POST /api/v1/report-payment",
			"GET  /api/v1/credit-score/{agent_id}",
			"GET  /api/v1/payment-history/{agent_id}",
			"GET  /health",
			"GET  /metrics",
		},
	)

	if err := http.ListenAndServe(cfg.Addr(), router); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func scoringParams(sc config.ScoringConfig) scoring.Params {
	return scoring.Params{
		DefaultScore:     sc.DefaultScore,
		MaxScore:         sc.MaxScore,
		MinScore:         sc.MinScore,
		OnTimeBonus:      sc.OnTimeBonus,
		MaxOnTimeBonus:   sc.MaxOnTimeBonus,
		LatePenaltyTier1: sc.LatePenaltyTier1,
		LatePenaltyTier2: sc.LatePenaltyTier2,
		LatePenaltyTier3: sc.LatePenaltyTier3,
		DefaultedPenalty: sc.DefaultedPenalty,
	}
}
