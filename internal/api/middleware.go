package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/meshpay/creditledger/internal/domain"
	"github.com/meshpay/creditledger/internal/observability"
)

// HeaderAgentWallet identifies the calling agent on every /api/v1 request.
const HeaderAgentWallet = "X-Agent-Wallet"

type contextKey string

const walletKey contextKey = "agentWallet"

// WalletFromContext returns the caller wallet stored by requireAgentWallet.
func WalletFromContext(ctx context.Context) string {
	wallet, _ := ctx.Value(walletKey).(string)
	return wallet
}

// requireAgentWallet rejects requests without a well-formed X-Agent-Wallet
// header. It runs before any payment gate, so identity errors are reported
// ahead of 402 challenges.
func requireAgentWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet := r.Header.Get(HeaderAgentWallet)
		if wallet == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing X-Agent-Wallet header")
			return
		}
		if err := domain.ValidateWallet("wallet", wallet); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_wallet", "Invalid wallet address format")
			return
		}
		ctx := context.WithValue(r.Context(), walletKey, wallet)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware echoes the request origin when it is on the allowlist and
// answers preflight requests. A "*" entry allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[strings.TrimSpace(origin)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, X-Agent-Wallet, X-402-Payment-Proof, X-402-Amount, X-402-Signature")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware enforces a per-caller request budget, keyed by the
// X-Agent-Wallet header with the client address as fallback. Each caller
// gets a fresh token bucket refilled at perMinute requests per minute.
func rateLimitMiddleware(perMinute int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	obtain := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, ok := limiters[key]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
			limiters[key] = limiter
		}
		return limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAgentWallet)
			if key == "" {
				key = clientAddr(r)
			}
			if !obtain(key).Allow() {
				observability.RateLimited.Inc()
				writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts and latency per matched route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		observability.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		observability.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// requestLogger emits one structured line per completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client", clientAddr(r))
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
