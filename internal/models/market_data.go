package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeDirection is the side of a single trade.
type TradeDirection string

const (
	// Buy spends the quote currency to acquire the base currency.
	Buy TradeDirection = "buy"
	// Sell converts the base currency into the quote currency.
	Sell TradeDirection = "sell"
)

// MaxFeeRate is the highest taker fee considered sane for a spot venue.
var MaxFeeRate = decimal.NewFromFloat(0.05)

// TradingPair is an immutable top-of-book snapshot for one venue-scoped symbol.
// A refresh produces a new snapshot; existing values are never mutated.
type TradingPair struct {
	Venue     string          `json:"venue" db:"venue"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Base      string          `json:"base" db:"base"`
	Quote     string          `json:"quote" db:"quote"`
	Bid       decimal.Decimal `json:"bid" db:"bid"`
	Ask       decimal.Decimal `json:"ask" db:"ask"`
	BidVolume decimal.Decimal `json:"bid_volume" db:"bid_volume"`
	AskVolume decimal.Decimal `json:"ask_volume" db:"ask_volume"`
	FeeRate   decimal.Decimal `json:"fee_rate" db:"fee_rate"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Spread returns the bid-ask spread as a percentage of the bid.
func (p TradingPair) Spread() decimal.Decimal {
	if p.Bid.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return p.Ask.Sub(p.Bid).Div(p.Bid).Mul(decimal.NewFromInt(100))
}

// Validate checks the snapshot invariants: bid <= ask, non-negative volumes
// and a fee rate inside [0, 0.05].
func (p TradingPair) Validate() error {
	subject := fmt.Sprintf("trading pair %s", p.Symbol)
	if p.Symbol == "" || p.Base == "" || p.Quote == "" {
		return newValidationError(subject, "incomplete symbol")
	}
	if p.Bid.IsNegative() || p.Ask.IsNegative() {
		return newValidationError(subject, "negative price")
	}
	if p.Bid.GreaterThan(p.Ask) {
		return newValidationError(subject, "bid %s above ask %s", p.Bid, p.Ask)
	}
	if p.BidVolume.IsNegative() || p.AskVolume.IsNegative() {
		return newValidationError(subject, "negative volume")
	}
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThan(MaxFeeRate) {
		return newValidationError(subject, "fee rate %s outside [0, %s]", p.FeeRate, MaxFeeRate)
	}
	return nil
}

// Age returns how old the snapshot is relative to now.
func (p TradingPair) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// PairSymbol builds the canonical "BASE/QUOTE" symbol.
func PairSymbol(base, quote string) string {
	return base + "/" + quote
}

// SplitSymbol splits a "BASE/QUOTE" symbol into its currencies.
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed symbol %q", symbol)
	}
	return parts[0], parts[1], nil
}
