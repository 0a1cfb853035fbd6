package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meshpay/creditledger/internal/config"
	"github.com/meshpay/creditledger/internal/domain"
	"github.com/meshpay/creditledger/internal/ledger"
)

const version = "1.0.0"

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	ledger *ledger.Service
	cfg    *config.Config
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errorBody is the envelope every failure response uses.
type errorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, errorBody{
		Error:     code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Root ---

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     "Agent Credit Ledger",
		"version":     version,
		"description": "Creditworthiness verification API for payment agents",
		"endpoints": map[string]string{
			"health":          "/health",
			"metrics":         "/metrics",
			"credit_score":    "/api/v1/credit-score/{agent_id}",
			"payment_history": "/api/v1/payment-history/{agent_id}",
			"report_payment":  "/api/v1/report-payment",
		},
		"protocol": "x402",
		"pricing": map[string]string{
			"credit_score":    "$" + h.cfg.X402.CreditScorePrice.String() + " USD",
			"payment_history": "$" + h.cfg.X402.PaymentHistoryPrice.String() + " USD",
			"report_payment":  "Free",
		},
	})
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
	})
}

// --- ReportPayment ---

type reportPaymentRequest struct {
	PayerWallet string          `json:"payer_wallet"`
	PayeeWallet string          `json:"payee_wallet"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	DueDate     time.Time       `json:"due_date"`
	PaymentDate *time.Time      `json:"payment_date"`
	Status      string          `json:"status"`
}

func (h *Handlers) ReportPayment(w http.ResponseWriter, r *http.Request) {
	var req reportPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body: "+err.Error())
		return
	}

	status, err := domain.ParsePaymentStatus(req.Status)
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "validation_error", "Invalid request data",
			map[string]string{"status": "must be one of: on_time, late, defaulted"})
		return
	}

	reporter := WalletFromContext(r.Context())
	slog.Info("payment report received",
		"reporter", reporter,
		"payer", req.PayerWallet,
		"payee", req.PayeeWallet,
		"amount", req.Amount.String(),
		"status", req.Status)

	receipt, err := h.ledger.ReportPayment(ledger.ReportInput{
		PayerWallet:    req.PayerWallet,
		PayeeWallet:    req.PayeeWallet,
		Amount:         req.Amount,
		Currency:       req.Currency,
		DueDate:        req.DueDate,
		PaymentDate:    req.PaymentDate,
		Status:         status,
		ReporterWallet: reporter,
	})
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrDuplicateEvent):
			writeError(w, http.StatusConflict, "duplicate_event", err.Error())
		case errors.As(err, &verr):
			writeErrorDetails(w, http.StatusBadRequest, "validation_error", "Invalid request data",
				map[string]string{verr.Field: verr.Message})
		default:
			slog.Error("report payment", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
		}
		return
	}

	e := receipt.Event
	writeJSON(w, http.StatusCreated, map[string]any{
		"event_id":             e.EventID,
		"message":              "Payment event recorded successfully",
		"payer_wallet":         e.PayerWallet,
		"payee_wallet":         e.PayeeWallet,
		"amount":               e.Amount,
		"status":               e.Status,
		"days_overdue":         e.DaysOverdue,
		"reported_at":          e.ReportedAt,
		"credit_score_updated": true,
		"new_credit_scores": map[string]int{
			"payer": receipt.PayerScore,
			"payee": receipt.PayeeScore,
		},
	})
}

// --- GetCreditScore ---

func (h *Handlers) GetCreditScore(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "wallet")
	if err := domain.ValidateWallet("agent_id", agentID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_wallet", "Invalid wallet address format for agent_id")
		return
	}

	slog.Info("credit score requested",
		"agent_id", agentID, "requester", WalletFromContext(r.Context()))

	snapshot, err := h.ledger.GetScore(agentID)
	if err != nil {
		slog.Error("get credit score", "agent_id", agentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// --- GetPaymentHistory ---

func (h *Handlers) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "wallet")
	if err := domain.ValidateWallet("agent_id", agentID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_wallet", "Invalid wallet address format for agent_id")
		return
	}

	q := r.URL.Query()

	page := 1
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Page must be >= 1")
			return
		}
		page = v
	}

	pageSize := 50
	if raw := q.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 200 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Page size must be between 1 and 200")
			return
		}
		pageSize = v
	}

	role, err := domain.ParsePaymentRole(q.Get("role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Role must be one of: all, payer, payee")
		return
	}

	var status domain.PaymentStatus
	if raw := q.Get("status"); raw != "" {
		status, err = domain.ParsePaymentStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Status must be one of: on_time, late, defaulted")
			return
		}
	}

	slog.Info("payment history requested",
		"agent_id", agentID,
		"requester", WalletFromContext(r.Context()),
		"page", page,
		"page_size", pageSize,
		"role", string(role))

	history, err := h.ledger.GetHistory(ledger.HistoryQuery{
		Wallet:   agentID,
		Role:     role,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		slog.Error("get payment history", "agent_id", agentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
		return
	}

	writeJSON(w, http.StatusOK, history)
}
