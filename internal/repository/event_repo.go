package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meshpay/creditledger/internal/domain"
)

type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Insert appends a payment event. Duplicate detection rides on the event_id
// primary key: a second report of the same logical payment returns
// domain.ErrDuplicateEvent without modifying the ledger.
func (r *EventRepo) Insert(e *domain.PaymentEvent) error {
	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO payment_events
		(event_id, payer_wallet, payee_wallet, amount, currency, due_date,
		 payment_date, status, days_overdue, reported_at, reporter_wallet)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.EventID, e.PayerWallet, e.PayeeWallet, e.Amount.String(), e.Currency,
		e.DueDate.UTC().Format(time.RFC3339), formatNullableTime(e.PaymentDate),
		string(e.Status), e.DaysOverdue, e.ReportedAt.UTC().Format(time.RFC3339),
		e.ReporterWallet,
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEvent, e.EventID)
	}
	return nil
}

func (r *EventRepo) GetByID(eventID string) (*domain.PaymentEvent, error) {
	row := r.db.QueryRow("SELECT * FROM payment_events WHERE event_id = ?", eventID)
	return scanEvent(row)
}

// EventFilter selects a wallet's events by role and optional status.
// Page/PageSize of zero fall back to the first page of 50.
type EventFilter struct {
	Wallet   string
	Role     domain.PaymentRole
	Status   domain.PaymentStatus
	Page     int
	PageSize int
}

// List returns one page of matching events plus the unpaginated total,
// newest first (ties broken by event_id for deterministic pagination).
// Pages past the end return an empty slice with the correct total.
func (r *EventRepo) List(f EventFilter) ([]domain.PaymentEvent, int, error) {
	where, args := buildEventWhere(f)

	var total int
	countSQL := "SELECT COUNT(*) FROM payment_events" + where
	if err := r.db.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.PageSize <= 0 {
		f.PageSize = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.PageSize

	querySQL := "SELECT * FROM payment_events" + where +
		" ORDER BY reported_at DESC, event_id LIMIT ? OFFSET ?"
	args = append(args, f.PageSize, offset)

	rows, err := r.db.Query(querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		e, err := scanEventRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		events = append(events, *e)
	}
	return events, total, rows.Err()
}

// ListByPayer returns every event where the wallet is the payer. This is
// the scoring input; it is never paginated.
func (r *EventRepo) ListByPayer(wallet string) ([]domain.PaymentEvent, error) {
	rows, err := r.db.Query(
		"SELECT * FROM payment_events WHERE payer_wallet = ? ORDER BY reported_at DESC, event_id",
		domain.NormalizeWallet(wallet),
	)
	if err != nil {
		return nil, fmt.Errorf("query payer events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		e, err := scanEventRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *EventRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM payment_events").Scan(&count)
	return count, err
}

// CountByStatus aggregates the ledger by payment status.
func (r *EventRepo) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(
		"SELECT status, COUNT(*) FROM payment_events GROUP BY status",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- helpers ---

func buildEventWhere(f EventFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Wallet != "" {
		wallet := domain.NormalizeWallet(f.Wallet)
		switch f.Role {
		case domain.RolePayer:
			clauses = append(clauses, "payer_wallet = ?")
			args = append(args, wallet)
		case domain.RolePayee:
			clauses = append(clauses, "payee_wallet = ?")
			args = append(args, wallet)
		default:
			clauses = append(clauses, "(payer_wallet = ? OR payee_wallet = ?)")
			args = append(args, wallet, wallet)
		}
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func scanEvent(row *sql.Row) (*domain.PaymentEvent, error) {
	var e domain.PaymentEvent
	var amount, status, dueDate, reportedAt string
	var paymentDateNull sql.NullString

	err := row.Scan(
		&e.EventID, &e.PayerWallet, &e.PayeeWallet, &amount, &e.Currency,
		&dueDate, &paymentDateNull, &status, &e.DaysOverdue, &reportedAt,
		&e.ReporterWallet,
	)
	if err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	e.Amount = amt
	e.Status = domain.PaymentStatus(status)
	e.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	e.ReportedAt, _ = time.Parse(time.RFC3339, reportedAt)

	if paymentDateNull.Valid {
		t, _ := time.Parse(time.RFC3339, paymentDateNull.String)
		e.PaymentDate = &t
	}

	return &e, nil
}

func scanEventRows(rows *sql.Rows) (*domain.PaymentEvent, error) {
	var e domain.PaymentEvent
	var amount, status, dueDate, reportedAt string
	var paymentDateNull sql.NullString

	err := rows.Scan(
		&e.EventID, &e.PayerWallet, &e.PayeeWallet, &amount, &e.Currency,
		&dueDate, &paymentDateNull, &status, &e.DaysOverdue, &reportedAt,
		&e.ReporterWallet,
	)
	if err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	e.Amount = amt
	e.Status = domain.PaymentStatus(status)
	e.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	e.ReportedAt, _ = time.Parse(time.RFC3339, reportedAt)

	if paymentDateNull.Valid {
		t, _ := time.Parse(time.RFC3339, paymentDateNull.String)
		e.PaymentDate = &t
	}

	return &e, nil
}
