package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEvent is returned when a payment event with the same
	// content-derived identifier has already been recorded.
	ErrDuplicateEvent = errors.New("payment event already exists")

	// ErrAgentNotFound is returned when no agent record exists for a wallet.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNotConnected indicates the ledger store is unreachable.
	ErrNotConnected = errors.New("ledger store not connected")
)

// ValidationError describes a single rejected field and the rule it broke.
// Validation happens at event construction, before any store interaction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
