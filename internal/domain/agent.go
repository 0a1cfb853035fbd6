package domain

import "time"

// Agent is the per-wallet credit projection. Created lazily on first
// reference with the configured default score; the score only changes
// through a full recomputation over the agent's payer-role events.
type Agent struct {
	WalletAddress         string    `json:"wallet_address"`
	CreditScore           int       `json:"credit_score"`
	TotalPaymentsMade     int       `json:"total_payments_made"`
	TotalPaymentsReceived int       `json:"total_payments_received"`
	CreatedAt             time.Time `json:"created_at"`
	LastUpdated           time.Time `json:"last_updated"`
}

// IsNew reports whether the agent has no recorded history on either side.
// A score equal to the default does not imply a new agent.
func (a *Agent) IsNew() bool {
	return a.TotalPaymentsMade == 0 && a.TotalPaymentsReceived == 0
}
