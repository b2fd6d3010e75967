package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypePix        TransactionType = "PIX"
	TransactionTypeTed        TransactionType = "TED"
	TransactionTypeDoc        TransactionType = "DOC"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeReversal   TransactionType = "REVERSAL"
)

// TransactionStatus represents the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// Transaction is one immutable ledger entry. Entries are appended inside
// the same database transaction as the balance mutation they record and are
// never deleted; the only later write is setting the reversal link, once.
type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	Hash                 string            `json:"hash"`
	IdempotencyKey       *string           `json:"idempotency_key,omitempty"`
	Type                 TransactionType   `json:"type"`
	Amount               decimal.Decimal   `json:"amount"`
	Fee                  decimal.Decimal   `json:"fee"`
	Status               TransactionStatus `json:"status"`
	Description          string            `json:"description"`
	SourceAccountID      *uuid.UUID        `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID        `json:"destination_account_id,omitempty"`
	BalanceBefore        decimal.Decimal   `json:"balance_before"`
	BalanceAfter         decimal.Decimal   `json:"balance_after"`
	RiskScore            int               `json:"risk_score"`
	ReversedByID         *uuid.UUID        `json:"reversed_by_id,omitempty"`
	FailureReason        *string           `json:"failure_reason,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	ProcessedAt          *time.Time        `json:"processed_at,omitempty"`
}

// IsCredit returns true for entry types that bring money into the
// destination account.
func (t *Transaction) IsCredit() bool {
	return t.Type == TransactionTypeDeposit || t.Type == TransactionTypeReversal
}

// IsDebit returns true for entry types that take money out of the source
// account. Daily limits bind debits only.
func (t *Transaction) IsDebit() bool {
	switch t.Type {
	case TransactionTypeWithdrawal, TransactionTypeTransfer, TransactionTypePix,
		TransactionTypeTed, TransactionTypeDoc, TransactionTypePayment:
		return true
	}
	return false
}

// IsCompleted returns true once the entry reached its successful terminal state.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// CanBeReversed reports whether this entry is eligible for reversal:
// a COMPLETED internal transfer or PIX that has not been reversed yet.
// A REVERSAL entry is never itself reversible.
func (t *Transaction) CanBeReversed() bool {
	return t.Status == TransactionStatusCompleted &&
		t.ReversedByID == nil &&
		(t.Type == TransactionTypeTransfer || t.Type == TransactionTypePix)
}

// DebitTypes lists every entry type counted against the daily limit.
func DebitTypes() []TransactionType {
	return []TransactionType{
		TransactionTypeWithdrawal,
		TransactionTypeTransfer,
		TransactionTypePix,
		TransactionTypeTed,
		TransactionTypeDoc,
		TransactionTypePayment,
	}
}

// ContentHash derives the globally unique tracing hash of a ledger entry
// from its identifying parts (BLAKE2b-256, hex encoded).
func ContentHash(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// NewContentHash builds the content hash for a freshly created entry.
func NewContentHash(id uuid.UUID, typ TransactionType, amount decimal.Decimal, createdAt time.Time) string {
	return ContentHash(id.String(), string(typ), amount.String(), createdAt.UTC().Format(time.RFC3339Nano))
}
