package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meshpay/creditledger/internal/domain"
)

type AgentRepo struct {
	db *sql.DB
}

func NewAgentRepo(db *sql.DB) *AgentRepo {
	return &AgentRepo{db: db}
}

// Get returns the agent record for a wallet, or domain.ErrAgentNotFound.
func (r *AgentRepo) Get(wallet string) (*domain.Agent, error) {
	row := r.db.QueryRow(
		"SELECT * FROM agents WHERE wallet_address = ?",
		domain.NormalizeWallet(wallet),
	)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, domain.NormalizeWallet(wallet))
	}
	return agent, err
}

// CreateIfAbsent inserts a fresh agent record with the default score.
// Existing records are left untouched, so created_at is set exactly once.
func (r *AgentRepo) CreateIfAbsent(wallet string, defaultScore int, now time.Time) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO agents
		(wallet_address, credit_score, total_payments_made, total_payments_received,
		 created_at, last_updated)
		VALUES (?,?,0,0,?,?)`,
		domain.NormalizeWallet(wallet), defaultScore,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// IncrementCounters bumps total_payments_made on the payer and
// total_payments_received on the payee, creating either record with default
// fields if absent. Each side is a single upsert, never a read followed by
// a write.
func (r *AgentRepo) IncrementCounters(payer, payee string, defaultScore int, now time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	nowStr := now.Format(time.RFC3339)

	_, err = tx.Exec(
		`INSERT INTO agents
		(wallet_address, credit_score, total_payments_made, total_payments_received,
		 created_at, last_updated)
		VALUES (?,?,1,0,?,?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			total_payments_made = total_payments_made + 1`,
		domain.NormalizeWallet(payer), defaultScore, nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("increment payer count: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO agents
		(wallet_address, credit_score, total_payments_made, total_payments_received,
		 created_at, last_updated)
		VALUES (?,?,0,1,?,?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			total_payments_received = total_payments_received + 1`,
		domain.NormalizeWallet(payee), defaultScore, nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("increment payee count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SetScore overwrites the stored score after a full recomputation. The
// payer-role event count is persisted alongside, which keeps the counter
// self-healing. Upsert semantics: a recompute for an unseen wallet creates
// the record.
func (r *AgentRepo) SetScore(wallet string, score, paymentsMade int, now time.Time) error {
	nowStr := now.Format(time.RFC3339)
	_, err := r.db.Exec(
		`INSERT INTO agents
		(wallet_address, credit_score, total_payments_made, total_payments_received,
		 created_at, last_updated)
		VALUES (?,?,?,0,?,?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			credit_score = excluded.credit_score,
			total_payments_made = excluded.total_payments_made,
			last_updated = excluded.last_updated`,
		domain.NormalizeWallet(wallet), score, paymentsMade, nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("set agent score: %w", err)
	}
	return nil
}

func (r *AgentRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM agents").Scan(&count)
	return count, err
}

// List returns all agents ordered by score, best first.
func (r *AgentRepo) List() ([]domain.Agent, error) {
	rows, err := r.db.Query(
		"SELECT * FROM agents ORDER BY credit_score DESC, wallet_address",
	)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgentRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// --- helpers ---

func scanAgent(row *sql.Row) (*domain.Agent, error) {
	var a domain.Agent
	var createdAt, lastUpdated string

	err := row.Scan(
		&a.WalletAddress, &a.CreditScore, &a.TotalPaymentsMade,
		&a.TotalPaymentsReceived, &createdAt, &lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return &a, nil
}

func scanAgentRows(rows *sql.Rows) (*domain.Agent, error) {
	var a domain.Agent
	var createdAt, lastUpdated string

	err := rows.Scan(
		&a.WalletAddress, &a.CreditScore, &a.TotalPaymentsMade,
		&a.TotalPaymentsReceived, &createdAt, &lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return &a, nil
}
