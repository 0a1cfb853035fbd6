package ledger_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meshpay/creditledger/internal/domain"
	"github.com/meshpay/creditledger/internal/ledger"
	"github.com/meshpay/creditledger/internal/repository"
	"github.com/meshpay/creditledger/internal/scoring"
)

const (
	alice    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa0001"
	bob      = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb0002"
	charlie  = "0xcccccccccccccccccccccccccccccccccccc0003"
	reporter = "0x9999999999999999999999999999999999999999"
)

// testClock is a mutable time source handed to the service via WithClock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	svc    *ledger.Service
	agents *repository.AgentRepo
	events *repository.EventRepo
	clock  *testClock
}

func newTestEnv(t *testing.T, opts ...ledger.Option) *testEnv {
	t.Helper()

	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: mustTime(t, "2025-03-01T12:00:00Z")}
	agents := repository.NewAgentRepo(db)
	events := repository.NewEventRepo(db)
	engine := scoring.NewEngine(scoring.DefaultParams())

	opts = append([]ledger.Option{ledger.WithClock(clock.Now)}, opts...)
	return &testEnv{
		svc:    ledger.NewService(agents, events, engine, opts...),
		agents: agents,
		events: events,
		clock:  clock,
	}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

// report builds a valid input for the given status. Callers vary the due
// date to keep event IDs distinct.
func report(payer, payee string, status domain.PaymentStatus, due time.Time) ledger.ReportInput {
	in := ledger.ReportInput{
		PayerWallet:    payer,
		PayeeWallet:    payee,
		Amount:         decimal.RequireFromString("150.50"),
		Currency:       "USD",
		DueDate:        due,
		Status:         status,
		ReporterWallet: reporter,
	}
	switch status {
	case domain.StatusOnTime:
		paid := due.Add(-time.Hour)
		in.PaymentDate = &paid
	case domain.StatusLate:
		paid := due.AddDate(0, 0, 10)
		in.PaymentDate = &paid
	}
	return in
}

func TestReportPaymentRecordsAndScores(t *testing.T) {
	env := newTestEnv(t)

	due := env.clock.Now().AddDate(0, 0, -1)
	receipt, err := env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, due))
	require.NoError(t, err)

	// One on-time payment is worth half a point, truncated away.
	require.Equal(t, 70, receipt.PayerScore)
	require.Equal(t, 70, receipt.PayeeScore)
	require.True(t, strings.HasPrefix(receipt.Event.EventID, "evt_"))

	count, err := env.events.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	payer, err := env.svc.GetScore(alice)
	require.NoError(t, err)
	require.Equal(t, 70, payer.CreditScore)
	require.Equal(t, 1, payer.PaymentsCount)
	require.False(t, payer.IsNewAgent)

	// The payee has made no payments, but receiving one still ends the
	// new-agent grace state.
	payee, err := env.svc.GetScore(bob)
	require.NoError(t, err)
	require.Equal(t, 70, payee.CreditScore)
	require.Equal(t, 0, payee.PaymentsCount)
	require.False(t, payee.IsNewAgent)
}

func TestReportPaymentRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	due := env.clock.Now().AddDate(0, 0, -1)
	_, err := env.svc.ReportPayment(report(alice, alice, domain.StatusOnTime, due))

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	// A rejected report leaves no trace.
	count, err := env.events.Count()
	require.NoError(t, err)
	require.Equal(t, 0, count)
	agentCount, err := env.agents.Count()
	require.NoError(t, err)
	require.Equal(t, 0, agentCount)
}

func TestReportDuplicateLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)

	due := env.clock.Now().AddDate(0, 0, -1)
	in := report(alice, bob, domain.StatusOnTime, due)
	_, err := env.svc.ReportPayment(in)
	require.NoError(t, err)

	// Same logical payment, hours later: the event ID collides.
	env.clock.Advance(3 * time.Hour)
	_, err = env.svc.ReportPayment(in)
	require.ErrorIs(t, err, domain.ErrDuplicateEvent)

	count, err := env.events.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	payer, err := env.agents.Get(alice)
	require.NoError(t, err)
	require.Equal(t, 1, payer.TotalPaymentsMade)
	require.Equal(t, 70, payer.CreditScore)
	payee, err := env.agents.Get(bob)
	require.NoError(t, err)
	require.Equal(t, 1, payee.TotalPaymentsReceived)
}

func TestReportPaymentMixedHistoryScore(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	for i := 0; i < 3; i++ {
		_, err := env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, now.AddDate(0, 0, i+1)))
		require.NoError(t, err)
	}
	_, err := env.svc.ReportPayment(report(alice, bob, domain.StatusLate, now.AddDate(0, 0, -10)))
	require.NoError(t, err)

	// 70 + 3*0.5 - 5 - 15 = 51.5, truncated to 51.
	receipt, err := env.svc.ReportPayment(report(alice, bob, domain.StatusDefaulted, now.AddDate(0, 0, -40)))
	require.NoError(t, err)
	require.Equal(t, 51, receipt.PayerScore)

	// The payee's own score is untouched by what it receives.
	require.Equal(t, 70, receipt.PayeeScore)
}

func TestGetScoreCreatesAgentOnFirstContact(t *testing.T) {
	env := newTestEnv(t)

	snap, err := env.svc.GetScore("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC0003")
	require.NoError(t, err)
	require.Equal(t, charlie, snap.AgentID)
	require.Equal(t, 70, snap.CreditScore)
	require.Equal(t, 0, snap.PaymentsCount)
	require.True(t, snap.IsNewAgent)
	require.Equal(t, env.clock.Now(), snap.LastUpdated)

	// The agent row now exists.
	agent, err := env.agents.Get(charlie)
	require.NoError(t, err)
	require.Equal(t, 70, agent.CreditScore)
}

func TestGetScoreDoesNotRecompute(t *testing.T) {
	env := newTestEnv(t)

	// Reads must return the stored snapshot as-is, even when it drifts
	// from what the history would produce.
	require.NoError(t, env.agents.SetScore(alice, 42, 3, env.clock.Now()))

	snap, err := env.svc.GetScore(alice)
	require.NoError(t, err)
	require.Equal(t, 42, snap.CreditScore)
	require.Equal(t, 3, snap.PaymentsCount)
}

func TestRecomputeScoreHealsPaymentCount(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	// Two events land in the ledger without going through ReportPayment,
	// so the stored counter is stale.
	for i := 0; i < 2; i++ {
		due := now.AddDate(0, 0, i+1)
		paid := due.Add(-time.Hour)
		event, err := domain.NewPaymentEvent(
			alice, bob, decimal.RequireFromString("25"), "USD",
			due, &paid, domain.StatusOnTime, reporter, now,
		)
		require.NoError(t, err)
		require.NoError(t, env.events.Insert(event))
	}
	require.NoError(t, env.agents.CreateIfAbsent(alice, 70, now))

	score, err := env.svc.RecomputeScore(alice)
	require.NoError(t, err)
	require.Equal(t, 71, score)

	agent, err := env.agents.Get(alice)
	require.NoError(t, err)
	require.Equal(t, 71, agent.CreditScore)
	require.Equal(t, 2, agent.TotalPaymentsMade)
}

func TestGetHistoryPagination(t *testing.T) {
	env := newTestEnv(t)

	var lastEventID string
	for i := 0; i < 5; i++ {
		due := env.clock.Now().AddDate(0, 0, i+1)
		receipt, err := env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, due))
		require.NoError(t, err)
		lastEventID = receipt.Event.EventID
		env.clock.Advance(time.Minute)
	}

	page, err := env.svc.GetHistory(ledger.HistoryQuery{Wallet: alice, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, alice, page.AgentID)
	require.Equal(t, 5, page.TotalCount)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Payments, 2)
	require.Equal(t, lastEventID, page.Payments[0].EventID)

	// Beyond the last page: empty but well-formed.
	past, err := env.svc.GetHistory(ledger.HistoryQuery{Wallet: alice, Page: 4, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 5, past.TotalCount)
	require.Equal(t, 3, past.TotalPages)
	require.NotNil(t, past.Payments)
	require.Empty(t, past.Payments)
}

func TestGetHistoryRoleAndStatusFilters(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	_, err := env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, now.AddDate(0, 0, 1)))
	require.NoError(t, err)
	_, err = env.svc.ReportPayment(report(alice, charlie, domain.StatusLate, now.AddDate(0, 0, -10)))
	require.NoError(t, err)
	_, err = env.svc.ReportPayment(report(bob, alice, domain.StatusOnTime, now.AddDate(0, 0, 2)))
	require.NoError(t, err)

	asPayer, err := env.svc.GetHistory(ledger.HistoryQuery{Wallet: alice, Role: domain.RolePayer})
	require.NoError(t, err)
	require.Equal(t, 2, asPayer.TotalCount)

	asPayee, err := env.svc.GetHistory(ledger.HistoryQuery{Wallet: alice, Role: domain.RolePayee})
	require.NoError(t, err)
	require.Equal(t, 1, asPayee.TotalCount)
	require.Equal(t, bob, asPayee.Payments[0].PayerWallet)

	lateOnly, err := env.svc.GetHistory(ledger.HistoryQuery{
		Wallet: alice, Role: domain.RolePayer, Status: domain.StatusLate,
	})
	require.NoError(t, err)
	require.Equal(t, 1, lateOnly.TotalCount)
	require.Equal(t, domain.StatusLate, lateOnly.Payments[0].Status)

	// Mixed-case queries resolve to the canonical wallet.
	upper, err := env.svc.GetHistory(ledger.HistoryQuery{Wallet: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA0001"})
	require.NoError(t, err)
	require.Equal(t, alice, upper.AgentID)
	require.Equal(t, 3, upper.TotalCount)
}

func TestGetHistoryRefreshesDefaultedDaysOverdue(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()

	_, err := env.svc.ReportPayment(report(alice, bob, domain.StatusDefaulted, now.AddDate(0, 0, -10)))
	require.NoError(t, err)
	_, err = env.svc.ReportPayment(report(alice, bob, domain.StatusLate, now.AddDate(0, 0, -20)))
	require.NoError(t, err)

	defaulted, err := env.svc.GetHistory(ledger.HistoryQuery{
		Wallet: alice, Status: domain.StatusDefaulted,
	})
	require.NoError(t, err)
	require.Equal(t, 10, defaulted.Payments[0].DaysOverdue)

	env.clock.Advance(5 * 24 * time.Hour)

	// The unresolved default keeps aging; the late payment stays frozen
	// at its payment date.
	defaulted, err = env.svc.GetHistory(ledger.HistoryQuery{
		Wallet: alice, Status: domain.StatusDefaulted,
	})
	require.NoError(t, err)
	require.Equal(t, 15, defaulted.Payments[0].DaysOverdue)

	late, err := env.svc.GetHistory(ledger.HistoryQuery{
		Wallet: alice, Status: domain.StatusLate,
	})
	require.NoError(t, err)
	require.Equal(t, 10, late.Payments[0].DaysOverdue)
}

func TestScoreCacheServesSnapshotUntilInvalidated(t *testing.T) {
	env := newTestEnv(t, ledger.WithScoreCache(0, time.Hour))

	due := env.clock.Now().AddDate(0, 0, -1)
	_, err := env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, due))
	require.NoError(t, err)

	snap, err := env.svc.GetScore(alice)
	require.NoError(t, err)
	require.Equal(t, 70, snap.CreditScore)

	// A write that bypasses the service is invisible until something
	// invalidates the cached snapshot.
	require.NoError(t, env.agents.SetScore(alice, 10, 1, env.clock.Now()))
	snap, err = env.svc.GetScore(alice)
	require.NoError(t, err)
	require.Equal(t, 70, snap.CreditScore)

	// A new report invalidates and recomputes from history.
	_, err = env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, due.AddDate(0, 0, 5)))
	require.NoError(t, err)
	snap, err = env.svc.GetScore(alice)
	require.NoError(t, err)
	require.Equal(t, 71, snap.CreditScore)
	require.Equal(t, 2, snap.PaymentsCount)
}

func TestIsNewAgentFlipsOnFirstActivity(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.svc.GetScore(bob)
	require.NoError(t, err)
	require.True(t, first.IsNewAgent)

	due := env.clock.Now().AddDate(0, 0, -1)
	_, err = env.svc.ReportPayment(report(alice, bob, domain.StatusOnTime, due))
	require.NoError(t, err)

	after, err := env.svc.GetScore(bob)
	require.NoError(t, err)
	require.False(t, after.IsNewAgent)
	require.Equal(t, 70, after.CreditScore)
	require.Equal(t, 0, after.PaymentsCount)
}
