package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshpay/creditledger/internal/config"
	"github.com/meshpay/creditledger/internal/ledger"
	"github.com/meshpay/creditledger/internal/x402"
)

// NewRouter creates the Chi router with all API routes mounted. The two read
// endpoints sit behind the x402 gate; reporting is free. Identity checks run
// before payment checks on every /api/v1 route.
func NewRouter(svc *ledger.Service, cfg *config.Config) http.Handler {
	h := &Handlers{ledger: svc, cfg: cfg}

	gate := x402.NewGate(x402.Config{
		Enabled:       cfg.X402.Enabled,
		Development:   cfg.IsDevelopment(),
		WalletAddress: cfg.X402.WalletAddress,
	})

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	if cfg.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(cfg.RateLimit.RequestsPerMinute))
	}
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	// System.
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Reporting (free).
		r.With(requireAgentWallet).
			Post("/report-payment", h.ReportPayment)

		// Reads (x402 priced).
		r.With(requireAgentWallet, gate.Require(cfg.X402.CreditScorePrice)).
			Get("/credit-score/{wallet}", h.GetCreditScore)
		r.With(requireAgentWallet, gate.Require(cfg.X402.PaymentHistoryPrice)).
			Get("/payment-history/{wallet}", h.GetPaymentHistory)
	})

	return r
}
