package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionState tracks where an execution attempt is in its lifecycle.
type ExecutionState string

const (
	ExecutionPending    ExecutionState = "pending"
	ExecutionValidating ExecutionState = "validating"
	ExecutionLeg1       ExecutionState = "leg1"
	ExecutionLeg2       ExecutionState = "leg2"
	ExecutionLeg3       ExecutionState = "leg3"
	ExecutionSettled    ExecutionState = "settled"
	ExecutionFailed     ExecutionState = "failed"
)

// ExecutionOutcome is the terminal classification of an attempt.
type ExecutionOutcome string

const (
	// OutcomeSuccess means all three legs filled and profit was realized.
	OutcomeSuccess ExecutionOutcome = "success"
	// OutcomePartial means at least one leg filled before a later leg failed.
	// Capital has moved and needs operator attention; no unwind is attempted.
	OutcomePartial ExecutionOutcome = "partial"
	// OutcomeFailed means no capital moved (rate cap, stale opportunity or a
	// failure on the first leg before any fill).
	OutcomeFailed ExecutionOutcome = "failed"
)

// ExecutionLeg records one order of the sequence: what was requested, what
// actually filled and the slippage between the two prices.
type ExecutionLeg struct {
	Step            int             `json:"step" db:"step"`
	Symbol          string          `json:"symbol" db:"symbol"`
	Direction       TradeDirection  `json:"direction" db:"direction"`
	RequestedAmount decimal.Decimal `json:"requested_amount" db:"requested_amount"`
	FilledAmount    decimal.Decimal `json:"filled_amount" db:"filled_amount"`
	ExpectedPrice   decimal.Decimal `json:"expected_price" db:"expected_price"`
	FillPrice       decimal.Decimal `json:"fill_price" db:"fill_price"`
	Slippage        decimal.Decimal `json:"slippage" db:"slippage"`
	OrderID         string          `json:"order_id" db:"order_id"`
	Filled          bool            `json:"filled" db:"filled"`
}

// ExecutionRecord is the write-once account of one execution attempt, created
// when the attempt starts and finalized exactly once at completion or failure.
type ExecutionRecord struct {
	ID             string           `json:"id" db:"id"`
	OpportunityID  string           `json:"opportunity_id" db:"opportunity_id"`
	Venue          string           `json:"venue" db:"venue"`
	Path           string           `json:"path" db:"path"`
	State          ExecutionState   `json:"state" db:"state"`
	Outcome        ExecutionOutcome `json:"outcome" db:"outcome"`
	Legs           []ExecutionLeg   `json:"legs" db:"legs"`
	StartAmount    decimal.Decimal  `json:"start_amount" db:"start_amount"`
	FinalAmount    decimal.Decimal  `json:"final_amount" db:"final_amount"`
	ExpectedProfit decimal.Decimal  `json:"expected_profit" db:"expected_profit"`
	RealizedProfit decimal.Decimal  `json:"realized_profit" db:"realized_profit"`
	TotalSlippage  decimal.Decimal  `json:"total_slippage" db:"total_slippage"`
	Error          string           `json:"error,omitempty" db:"error"`
	StartedAt      time.Time        `json:"started_at" db:"started_at"`
	CompletedAt    time.Time        `json:"completed_at" db:"completed_at"`
}

// FilledLegs returns how many legs completed with a fill.
func (r ExecutionRecord) FilledLegs() int {
	n := 0
	for _, leg := range r.Legs {
		if leg.Filled {
			n++
		}
	}
	return n
}

// CapitalMoved reports whether any order filled during the attempt.
func (r ExecutionRecord) CapitalMoved() bool {
	return r.FilledLegs() > 0
}

// ExecutionStats aggregates execution history for reporting.
type ExecutionStats struct {
	TotalAttempts    int             `json:"total_attempts"`
	Settled          int             `json:"settled"`
	Partial          int             `json:"partial"`
	Failed           int             `json:"failed"`
	SuccessRate      float64         `json:"success_rate"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	AverageProfit    decimal.Decimal `json:"average_profit"`
	AverageSlippage  decimal.Decimal `json:"average_slippage"`
}
