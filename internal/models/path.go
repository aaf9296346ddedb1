package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PathLeg is one conversion step of a triangular path: trading Symbol in
// Direction converts the From currency into the To currency.
type PathLeg struct {
	Symbol    string         `json:"symbol"`
	Direction TradeDirection `json:"direction"`
	From      string         `json:"from"`
	To        string         `json:"to"`
}

// TriangularPath is a closed three-leg trading cycle starting and ending at
// the same base currency. It is a skeleton: pricing lives on Opportunity.
type TriangularPath struct {
	// Currencies holds the visited sequence, e.g. [BTC, ETH, USDT, BTC].
	Currencies []string  `json:"currencies"`
	Legs       []PathLeg `json:"legs"`
}

// Start returns the currency the cycle begins and ends at.
func (p TriangularPath) Start() string {
	if len(p.Currencies) == 0 {
		return ""
	}
	return p.Currencies[0]
}

// String renders the path as "BTC → ETH → USDT → BTC".
func (p TriangularPath) String() string {
	return strings.Join(p.Currencies, " → ")
}

// CanonicalKey identifies the cycle independent of which currency it was
// discovered from. The triple is rotated so its lexicographically smallest
// currency leads; orientation is preserved since the reversed cycle trades
// through different sides and is a distinct path.
func (p TriangularPath) CanonicalKey() string {
	if len(p.Currencies) != 4 {
		return strings.Join(p.Currencies, ">")
	}
	tri := p.Currencies[:3]
	min := 0
	for i := 1; i < 3; i++ {
		if tri[i] < tri[min] {
			min = i
		}
	}
	rotated := []string{tri[min], tri[(min+1)%3], tri[(min+2)%3]}
	return strings.Join(rotated, ">")
}

// Opportunity is a triangular path priced against a concrete set of tickers.
// It is only meaningful inside its freshness window.
type Opportunity struct {
	ID               string           `json:"id"`
	Path             TriangularPath   `json:"path"`
	Pairs            []TradingPair    `json:"pairs"`
	StartAmount      decimal.Decimal  `json:"start_amount"`
	FinalAmount      decimal.Decimal  `json:"final_amount"`
	ProfitAmount     decimal.Decimal  `json:"profit_amount"`
	ProfitPercentage decimal.Decimal  `json:"profit_percentage"`
	CompoundRate     decimal.Decimal  `json:"compound_rate"`
	RiskScore        float64          `json:"risk_score"`
	Executable       bool             `json:"executable"`
	Reason           string           `json:"reason"`
	DetectedAt       time.Time        `json:"detected_at"`
}

// Fresh reports whether the opportunity is still inside its freshness window.
func (o Opportunity) Fresh(window time.Duration, now time.Time) bool {
	return now.Sub(o.DetectedAt) <= window
}

// Pair returns the ticker the given leg was priced against.
func (o Opportunity) Pair(symbol string) (TradingPair, bool) {
	for _, p := range o.Pairs {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return TradingPair{}, false
}

// MarketSnapshot is the immutable result of one scan cycle: the tickers that
// were fetched and every priced opportunity, best first.
type MarketSnapshot struct {
	ID            string        `json:"id"`
	Venue         string        `json:"venue"`
	Timestamp     time.Time     `json:"timestamp"`
	Pairs         []TradingPair `json:"pairs"`
	Opportunities []Opportunity `json:"opportunities"`
}

// Best returns the highest ranked executable opportunity, if any.
func (s *MarketSnapshot) Best() (Opportunity, bool) {
	for _, o := range s.Opportunities {
		if o.Executable {
			return o, true
		}
	}
	return Opportunity{}, false
}

// ExecutableCount counts opportunities above the profit threshold.
func (s *MarketSnapshot) ExecutableCount() int {
	n := 0
	for _, o := range s.Opportunities {
		if o.Executable {
			n++
		}
	}
	return n
}
