package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusOnTime    PaymentStatus = "on_time"
	StatusLate      PaymentStatus = "late"
	StatusDefaulted PaymentStatus = "defaulted"
)

// ParsePaymentStatus validates a raw status string from the API boundary.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case StatusOnTime, StatusLate, StatusDefaulted:
		return st, nil
	default:
		return "", &ValidationError{
			Field:   "status",
			Message: "must be one of: on_time, late, defaulted",
		}
	}
}

type PaymentRole string

const (
	RoleAll   PaymentRole = "all"
	RolePayer PaymentRole = "payer"
	RolePayee PaymentRole = "payee"
)

// ParsePaymentRole validates a raw role filter. An empty string means "all".
func ParsePaymentRole(s string) (PaymentRole, error) {
	switch r := PaymentRole(s); r {
	case RoleAll, RolePayer, RolePayee:
		return r, nil
	case "":
		return RoleAll, nil
	default:
		return "", &ValidationError{
			Field:   "role",
			Message: "must be one of: all, payer, payee",
		}
	}
}

// PaymentEvent is a single reported payment between two agents. Events are
// immutable once constructed; NewPaymentEvent is the only way to build a
// valid one.
type PaymentEvent struct {
	EventID        string          `json:"event_id"`
	PayerWallet    string          `json:"payer_wallet"`
	PayeeWallet    string          `json:"payee_wallet"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	DueDate        time.Time       `json:"due_date"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	Status         PaymentStatus   `json:"status"`
	DaysOverdue    int             `json:"days_overdue"`
	ReportedAt     time.Time       `json:"reported_at"`
	ReporterWallet string          `json:"reporter_wallet"`
}

// NewPaymentEvent validates the reported fields and returns a fully
// populated event, or a ValidationError naming the offending field. Wallets
// are normalized to lower case; the event identifier is derived from the
// normalized content so identical reports collide.
func NewPaymentEvent(
	payerWallet, payeeWallet string,
	amount decimal.Decimal,
	currency string,
	dueDate time.Time,
	paymentDate *time.Time,
	status PaymentStatus,
	reporterWallet string,
	now time.Time,
) (*PaymentEvent, error) {
	if err := ValidateWallet("payer_wallet", payerWallet); err != nil {
		return nil, err
	}
	if err := ValidateWallet("payee_wallet", payeeWallet); err != nil {
		return nil, err
	}
	if err := ValidateWallet("reporter_wallet", reporterWallet); err != nil {
		return nil, err
	}

	payer := NormalizeWallet(payerWallet)
	payee := NormalizeWallet(payeeWallet)
	reporter := NormalizeWallet(reporterWallet)

	if payer == payee {
		return nil, &ValidationError{
			Field:   "payee_wallet",
			Message: "payer and payee must be different",
		}
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{
			Field:   "amount",
			Message: "must be greater than zero",
		}
	}
	if currency == "" {
		currency = "USD"
	}

	daysOverdue := 0
	switch status {
	case StatusOnTime:
		if paymentDate == nil {
			return nil, &ValidationError{
				Field:   "payment_date",
				Message: "required when status is on_time",
			}
		}
		if paymentDate.After(dueDate) {
			return nil, &ValidationError{
				Field:   "payment_date",
				Message: "must be on or before due_date when status is on_time",
			}
		}
	case StatusLate:
		if paymentDate == nil {
			return nil, &ValidationError{
				Field:   "payment_date",
				Message: "required when status is late",
			}
		}
		if !paymentDate.After(dueDate) {
			return nil, &ValidationError{
				Field:   "payment_date",
				Message: "must be after due_date when status is late",
			}
		}
		daysOverdue = wholeDays(paymentDate.Sub(dueDate))
	case StatusDefaulted:
		if paymentDate != nil {
			return nil, &ValidationError{
				Field:   "payment_date",
				Message: "must be omitted when status is defaulted",
			}
		}
		daysOverdue = max(0, wholeDays(now.Sub(dueDate)))
	default:
		return nil, &ValidationError{
			Field:   "status",
			Message: "must be one of: on_time, late, defaulted",
		}
	}

	return &PaymentEvent{
		EventID:        EventID(payer, payee, amount, dueDate),
		PayerWallet:    payer,
		PayeeWallet:    payee,
		Amount:         amount,
		Currency:       currency,
		DueDate:        dueDate,
		PaymentDate:    paymentDate,
		Status:         status,
		DaysOverdue:    daysOverdue,
		ReportedAt:     now.UTC(),
		ReporterWallet: reporter,
	}, nil
}

// EventID derives the content address for a payment: a sha256 over the
// lower-cased wallets, the canonical amount, and the UTC RFC 3339 due date,
// truncated to 16 hex chars under an evt_ namespace. Re-submitting the same
// logical payment always produces the same identifier.
func EventID(payerWallet, payeeWallet string, amount decimal.Decimal, dueDate time.Time) string {
	payload := strings.ToLower(payerWallet) +
		strings.ToLower(payeeWallet) +
		CanonicalAmount(amount) +
		dueDate.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(payload))
	return "evt_" + hex.EncodeToString(sum[:])[:16]
}

// CanonicalAmount renders a decimal with trailing fractional zeros trimmed,
// so value-equal amounts ("150.50", "150.5") hash identically.
func CanonicalAmount(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// RefreshDaysOverdue recomputes days overdue for defaulted events, which
// stay open and keep aging until a terminal report replaces them. Late
// events keep the value frozen at payment time.
func (e *PaymentEvent) RefreshDaysOverdue(now time.Time) {
	if e.Status == StatusDefaulted {
		e.DaysOverdue = max(0, wholeDays(now.Sub(e.DueDate)))
	}
}

// ValidateWallet checks the flexible wallet format shared by all parties:
// a literal 0x prefix followed by at least one character.
func ValidateWallet(field, wallet string) error {
	if !strings.HasPrefix(wallet, "0x") {
		return &ValidationError{Field: field, Message: `must start with "0x"`}
	}
	if len(wallet) < 3 {
		return &ValidationError{Field: field, Message: "must be at least 3 characters"}
	}
	return nil
}

// NormalizeWallet case-folds a wallet address so the same logical party
// cannot fragment into multiple ledger rows.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(wallet)
}

// wholeDays truncates a duration to whole days (no rounding).
func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
