package service

import (
	"flowpay-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// tedDocFee is the flat fee charged on TED and DOC transfers.
var tedDocFee = decimal.RequireFromString("8.50")

// FeeCalculator computes the fee charged for a movement. The fee is debited
// from the source together with the amount, inside the same atomic unit,
// and is never refunded on reversal.
type FeeCalculator struct{}

func NewFeeCalculator() *FeeCalculator {
	return &FeeCalculator{}
}

// Calculate returns the fee for the given movement type. Deposits,
// withdrawals, internal transfers and PIX are free of charge.
func (f *FeeCalculator) Calculate(typ domain.TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch typ {
	case domain.TransactionTypeTed, domain.TransactionTypeDoc:
		return tedDocFee
	default:
		return decimal.Zero
	}
}
