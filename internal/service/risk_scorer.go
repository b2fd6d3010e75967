package service

import (
	"time"

	"flowpay-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Risk scoring thresholds. The score is advisory only: it is recorded on the
// ledger entry and logged, but never blocks an otherwise valid transaction.
var (
	riskAmountHigh   = decimal.NewFromInt(10000)
	riskAmountMedium = decimal.NewFromInt(5000)
)

const (
	riskMaxScore       = 100
	riskVelocityOps    = 3
	riskVelocityWindow = 5 * time.Minute
)

// RiskInput carries the signals the scorer evaluates.
type RiskInput struct {
	Amount decimal.Decimal
	Type   domain.TransactionType
	// RecentOps is the number of entries the source account originated in
	// the trailing velocity window.
	RecentOps int64
	// At is the moment of the transaction, used for the off-hours signal.
	At time.Time
}

// RiskScorer assigns an advisory 0-100 risk score to a movement.
type RiskScorer struct{}

func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// VelocityWindow returns the trailing window over which RecentOps must be
// counted for Score to be meaningful.
func (r *RiskScorer) VelocityWindow() time.Duration {
	return riskVelocityWindow
}

// Score computes the risk score: amount bands, velocity, off-hours and
// instant-rail signals, capped at 100.
func (r *RiskScorer) Score(in RiskInput) int {
	score := 0

	if in.Amount.GreaterThan(riskAmountHigh) {
		score += 30
	} else if in.Amount.GreaterThan(riskAmountMedium) {
		score += 15
	}

	if in.RecentOps > riskVelocityOps {
		score += 25
	}

	hour := in.At.Hour()
	if hour < 6 || hour > 22 {
		score += 10
	}

	if in.Type == domain.TransactionTypePix {
		score += 5
	}

	if score > riskMaxScore {
		score = riskMaxScore
	}
	return score
}
