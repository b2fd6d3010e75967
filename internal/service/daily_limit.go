package service

import (
	"context"
	"time"

	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyLimitTracker derives an account's daily debit usage from the ledger
// itself. Nothing is persisted and no reset job exists: the window is the
// calendar day in UTC, and usage outside it simply stops matching the query.
type DailyLimitTracker struct {
	txRepo ports.TransactionRepository
	now    func() time.Time
}

func NewDailyLimitTracker(txRepo ports.TransactionRepository) *DailyLimitTracker {
	return &DailyLimitTracker{txRepo: txRepo, now: time.Now}
}

// UsedToday returns the sum of COMPLETED debit amounts the account originated
// during the current UTC day. Fees are excluded: the limit governs how much
// the holder moves, not what the institution charges.
func (d *DailyLimitTracker) UsedToday(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	from, to := dayBounds(d.now().UTC())
	return d.txRepo.SumCompletedDebits(ctx, accountID, from, to)
}

// WouldExceed checks whether adding amount to today's usage would break the
// account's daily limit.
func (d *DailyLimitTracker) WouldExceed(ctx context.Context, account *domain.Account, amount decimal.Decimal) (bool, error) {
	used, err := d.UsedToday(ctx, account.ID)
	if err != nil {
		return false, err
	}
	return used.Add(amount).GreaterThan(account.DailyLimit), nil
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}
