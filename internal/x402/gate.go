// Package x402 implements the seller side of the x402 payment protocol:
// verifying payment proof headers on priced endpoints and issuing 402
// challenges that describe how to pay.
package x402

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meshpay/creditledger/internal/observability"
)

// Request headers a buyer attaches to prove payment.
const (
	HeaderPaymentProof = "X-402-Payment-Proof"
	HeaderAmount       = "X-402-Amount"
	HeaderSignature    = "X-402-Signature"
)

// Challenge response headers.
const (
	HeaderCurrency = "X-402-Currency"
	HeaderAddress  = "X-402-Address"
)

type Config struct {
	Enabled       bool
	Development   bool
	WalletAddress string
	Currency      string
}

// Gate verifies x402 payments. Proof verification is mocked: development
// mode accepts proofs with a test_/proof_/mock_ prefix, production accepts
// everything until the facilitator integration lands.
type Gate struct {
	cfg Config
}

func NewGate(cfg Config) *Gate {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Gate{cfg: cfg}
}

// Verify reports whether the request carries acceptable payment for price.
func (g *Gate) Verify(r *http.Request, price decimal.Decimal) bool {
	if !g.cfg.Enabled {
		slog.Warn("x402 verification disabled, allowing request")
		return true
	}

	proof := r.Header.Get(HeaderPaymentProof)
	amount := r.Header.Get(HeaderAmount)
	signature := r.Header.Get(HeaderSignature)

	if proof == "" || amount == "" || signature == "" {
		slog.Info("x402 payment headers missing",
			"has_proof", proof != "",
			"has_amount", amount != "",
			"has_signature", signature != "")
		return false
	}

	provided, err := decimal.NewFromString(amount)
	if err != nil {
		slog.Warn("invalid x402 payment amount", "amount", amount)
		return false
	}
	if provided.LessThan(price) {
		slog.Warn("insufficient x402 payment",
			"required", price.String(), "provided", provided.String())
		return false
	}

	if g.cfg.Development {
		valid := strings.HasPrefix(proof, "test_") ||
			strings.HasPrefix(proof, "proof_") ||
			strings.HasPrefix(proof, "mock_")
		slog.Info("mock x402 payment verified", "valid", valid)
		return valid
	}

	return g.verifyWithFacilitator(proof, signature, provided)
}

func (g *Gate) verifyWithFacilitator(proof, signature string, amount decimal.Decimal) bool {
	// TODO: POST to the facilitator's verify-payment API; until that
	// integration lands production accepts any well-formed proof.
	slog.Warn("facilitator verification not implemented, accepting payment",
		"amount", amount.String())
	return true
}

// Require wraps a handler with payment verification at the given price.
// Requests without acceptable payment receive a 402 challenge.
func (g *Gate) Require(price decimal.Decimal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok := g.Verify(r, price)

			outcome := "challenged"
			if ok {
				outcome = "accepted"
				if !g.cfg.Enabled {
					outcome = "disabled"
				}
			}
			observability.X402Verifications.WithLabelValues(outcome).Inc()

			if !ok {
				g.writeChallenge(w, r, price)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Challenge is the 402 response body.
type Challenge struct {
	Error          string         `json:"error"`
	Message        string         `json:"message"`
	PaymentDetails PaymentDetails `json:"payment_details"`
	Instructions   string         `json:"instructions"`
	Timestamp      string         `json:"timestamp"`
}

type PaymentDetails struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	PaymentAddress string `json:"payment_address"`
	Endpoint       string `json:"endpoint"`
	Nonce          string `json:"nonce"`
}

func (g *Gate) writeChallenge(w http.ResponseWriter, r *http.Request, price decimal.Decimal) {
	w.Header().Set(HeaderAmount, price.String())
	w.Header().Set(HeaderCurrency, g.cfg.Currency)
	w.Header().Set(HeaderAddress, g.cfg.WalletAddress)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)

	challenge := Challenge{
		Error: "payment_required",
		Message: fmt.Sprintf("Payment of $%s %s required to access this endpoint",
			price.String(), g.cfg.Currency),
		PaymentDetails: PaymentDetails{
			Amount:         price.String(),
			Currency:       g.cfg.Currency,
			PaymentAddress: g.cfg.WalletAddress,
			Endpoint:       r.URL.Path,
			Nonce:          uuid.NewString(),
		},
		Instructions: "Include valid x402 payment proof in request headers",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(challenge); err != nil {
		slog.Error("write 402 challenge", "error", err)
	}
}
