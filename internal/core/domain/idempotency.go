package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by storage adapters so the engine can react to
// specific database conditions without importing driver packages.
var (
	// ErrDuplicateKey reports a uniqueness-constraint violation, e.g. two
	// concurrent requests racing to reserve the same idempotency key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrLockNotAcquired reports that a row lock could not be obtained
	// within the configured lock timeout. Callers may retry.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrAlreadyReversed reports that the reversal link on a ledger entry
	// was already set by a concurrent reversal.
	ErrAlreadyReversed = errors.New("transaction already reversed")
)

// IdempotencyRecord maps a client-supplied key to the ledger entry it
// produced, written exactly once and atomically with that entry.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}
