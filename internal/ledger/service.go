// Package ledger orchestrates payment reporting and credit score reads over
// the agent and event repositories.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/meshpay/creditledger/internal/domain"
	"github.com/meshpay/creditledger/internal/observability"
	"github.com/meshpay/creditledger/internal/repository"
	"github.com/meshpay/creditledger/internal/scoring"
)

type Service struct {
	agents *repository.AgentRepo
	events *repository.EventRepo
	engine *scoring.Engine
	cache  *expirable.LRU[string, ScoreSnapshot]
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithScoreCache enables the read-through score snapshot cache.
func WithScoreCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = expirable.NewLRU[string, ScoreSnapshot](size, nil, ttl)
	}
}

func NewService(agents *repository.AgentRepo, events *repository.EventRepo, engine *scoring.Engine, opts ...Option) *Service {
	s := &Service{
		agents: agents,
		events: events,
		engine: engine,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportInput is one payment report as submitted by a reporter agent.
type ReportInput struct {
	PayerWallet    string
	PayeeWallet    string
	Amount         decimal.Decimal
	Currency       string
	DueDate        time.Time
	PaymentDate    *time.Time
	Status         domain.PaymentStatus
	ReporterWallet string
}

// Receipt summarizes an accepted report: the recorded event plus both
// parties' credit scores after the update.
type Receipt struct {
	Event      *domain.PaymentEvent
	PayerScore int
	PayeeScore int
}

// ScoreSnapshot is the stored credit standing of one agent.
type ScoreSnapshot struct {
	AgentID       string    `json:"agent_id"`
	CreditScore   int       `json:"credit_score"`
	LastUpdated   time.Time `json:"last_updated"`
	PaymentsCount int       `json:"payments_count"`
	IsNewAgent    bool      `json:"is_new_agent"`
}

// ReportPayment validates and records a payment event, bumps both parties'
// counters, recomputes the payer's score from full history and returns a
// receipt carrying both scores. A duplicate event leaves the ledger and all
// scores untouched.
func (s *Service) ReportPayment(in ReportInput) (*Receipt, error) {
	event, err := domain.NewPaymentEvent(
		in.PayerWallet, in.PayeeWallet, in.Amount, in.Currency,
		in.DueDate, in.PaymentDate, in.Status, in.ReporterWallet, s.now(),
	)
	if err != nil {
		observability.ValidationFailures.Inc()
		return nil, err
	}

	if err := s.events.Insert(event); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			observability.DuplicateReports.Inc()
			slog.Warn("duplicate payment event",
				"event_id", event.EventID,
				"payer", event.PayerWallet,
				"payee", event.PayeeWallet)
		}
		return nil, err
	}

	if err := s.agents.IncrementCounters(event.PayerWallet, event.PayeeWallet, s.engine.DefaultScore(), s.now()); err != nil {
		return nil, fmt.Errorf("increment counters: %w", err)
	}
	s.invalidateScore(event.PayerWallet)
	s.invalidateScore(event.PayeeWallet)

	payerScore, err := s.RecomputeScore(event.PayerWallet)
	if err != nil {
		return nil, err
	}

	payee, err := s.GetScore(event.PayeeWallet)
	if err != nil {
		return nil, err
	}

	observability.PaymentsReported.WithLabelValues(string(event.Status)).Inc()
	slog.Info("payment event recorded",
		"event_id", event.EventID,
		"payer", event.PayerWallet,
		"payee", event.PayeeWallet,
		"amount", event.Amount.String(),
		"status", string(event.Status),
		"payer_score", payerScore,
		"payee_score", payee.CreditScore)

	return &Receipt{Event: event, PayerScore: payerScore, PayeeScore: payee.CreditScore}, nil
}

// RecomputeScore rebuilds the wallet's score from its complete history as
// payer and persists it along with the payment count, healing any drift
// between the stored counter and the ledger. Recomputes for the same wallet
// are serialized: concurrent reports cannot interleave the history read and
// the score write.
func (s *Service) RecomputeScore(wallet string) (int, error) {
	wallet = domain.NormalizeWallet(wallet)

	lock := s.walletLock(wallet)
	lock.Lock()
	defer lock.Unlock()

	events, err := s.events.ListByPayer(wallet)
	if err != nil {
		return 0, fmt.Errorf("load payer history: %w", err)
	}

	now := s.now()
	for i := range events {
		events[i].RefreshDaysOverdue(now)
	}

	score := s.engine.Score(events)
	if err := s.agents.SetScore(wallet, score, len(events), now); err != nil {
		return 0, fmt.Errorf("persist score: %w", err)
	}
	s.invalidateScore(wallet)

	observability.ScoreRecomputations.Inc()
	slog.Info("credit score updated",
		"wallet", wallet, "credit_score", score, "payment_count", len(events))
	return score, nil
}

// GetScore returns the stored snapshot for the wallet, creating the agent
// with the default score on first contact. The read path never recomputes.
func (s *Service) GetScore(wallet string) (*ScoreSnapshot, error) {
	wallet = domain.NormalizeWallet(wallet)

	if s.cache != nil {
		if snap, ok := s.cache.Get(wallet); ok {
			observability.ScoreCacheHits.Inc()
			return &snap, nil
		}
		observability.ScoreCacheMisses.Inc()
	}

	if err := s.agents.CreateIfAbsent(wallet, s.engine.DefaultScore(), s.now()); err != nil {
		return nil, fmt.Errorf("ensure agent: %w", err)
	}
	agent, err := s.agents.Get(wallet)
	if err != nil {
		return nil, err
	}

	snap := ScoreSnapshot{
		AgentID:       agent.WalletAddress,
		CreditScore:   agent.CreditScore,
		LastUpdated:   agent.LastUpdated,
		PaymentsCount: agent.TotalPaymentsMade,
		IsNewAgent:    agent.IsNew(),
	}
	if s.cache != nil {
		s.cache.Add(wallet, snap)
	}
	return &snap, nil
}

// HistoryQuery selects a page of a wallet's payment history.
type HistoryQuery struct {
	Wallet   string
	Role     domain.PaymentRole
	Status   domain.PaymentStatus
	Page     int
	PageSize int
}

// HistoryPage is one page of payment history with pagination totals.
type HistoryPage struct {
	AgentID    string                `json:"agent_id"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	Payments   []domain.PaymentEvent `json:"payments"`
}

// GetHistory returns the requested page, newest first. Pages beyond the end
// come back empty with the totals intact. Days overdue on defaulted events
// reflect the clock at read time.
func (s *Service) GetHistory(q HistoryQuery) (*HistoryPage, error) {
	wallet := domain.NormalizeWallet(q.Wallet)
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 50
	}

	events, total, err := s.events.List(repository.EventFilter{
		Wallet:   wallet,
		Role:     q.Role,
		Status:   q.Status,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	now := s.now()
	for i := range events {
		events[i].RefreshDaysOverdue(now)
	}
	if events == nil {
		events = []domain.PaymentEvent{}
	}

	return &HistoryPage{
		AgentID:    wallet,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
		Payments:   events,
	}, nil
}

// --- helpers ---

func (s *Service) walletLock(wallet string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[wallet]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[wallet] = lock
	}
	return lock
}

func (s *Service) invalidateScore(wallet string) {
	if s.cache != nil {
		s.cache.Remove(wallet)
	}
}
