// Package scoring derives a bounded creditworthiness score from an agent's
// payment history. The engine is a pure function over a snapshot of events;
// it never touches storage.
package scoring

import (
	"github.com/meshpay/creditledger/internal/domain"
)

// Params holds the score weights. All magnitudes are configurable; the
// defaults implement algorithm v1.0.
type Params struct {
	DefaultScore     int
	MaxScore         int
	MinScore         int
	OnTimeBonus      float64
	MaxOnTimeBonus   float64
	LatePenaltyTier1 float64 // 1-7 days overdue
	LatePenaltyTier2 float64 // 8-30 days overdue
	LatePenaltyTier3 float64 // >30 days overdue
	DefaultedPenalty float64
}

// DefaultParams returns the v1.0 weights: base 70, +0.5 per on-time payment
// capped at +30, late penalties 2/5/10 by tier, -15 per default, clamped to
// [0, 100].
func DefaultParams() Params {
	return Params{
		DefaultScore:     70,
		MaxScore:         100,
		MinScore:         0,
		OnTimeBonus:      0.5,
		MaxOnTimeBonus:   30,
		LatePenaltyTier1: 2,
		LatePenaltyTier2: 5,
		LatePenaltyTier3: 10,
		DefaultedPenalty: 15,
	}
}

type Engine struct {
	params Params
}

func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// DefaultScore is the neutral score assigned to agents with no history.
func (e *Engine) DefaultScore() int {
	return e.params.DefaultScore
}

// Score computes the credit score for the given payer-role events. The
// accumulator stays a float until the end: the on-time bonus is applied
// once after counting (it is capped, so it cannot be applied per event),
// then the result is truncated to an integer and clamped.
func (e *Engine) Score(events []domain.PaymentEvent) int {
	if len(events) == 0 {
		return e.params.DefaultScore
	}

	score := float64(e.params.DefaultScore)
	onTimeCount := 0

	for i := range events {
		switch events[i].Status {
		case domain.StatusOnTime:
			onTimeCount++
		case domain.StatusLate:
			score -= e.latePenalty(events[i].DaysOverdue)
		case domain.StatusDefaulted:
			score -= e.params.DefaultedPenalty
		}
	}

	score += min(float64(onTimeCount)*e.params.OnTimeBonus, e.params.MaxOnTimeBonus)

	return clamp(int(score), e.params.MinScore, e.params.MaxScore)
}

// latePenalty selects the tier by days overdue: <=7, <=30, >30.
func (e *Engine) latePenalty(daysOverdue int) float64 {
	switch {
	case daysOverdue <= 7:
		return e.params.LatePenaltyTier1
	case daysOverdue <= 30:
		return e.params.LatePenaltyTier2
	default:
		return e.params.LatePenaltyTier3
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
