package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// Scorer prices path skeletons against a ticker set and produces a ranked
// snapshot. A learned scorer can be configured in as an alternative
// implementation of this contract.
type Scorer interface {
	Score(venue string, paths []models.TriangularPath, tickers map[string]models.TradingPair, now time.Time) *models.MarketSnapshot
}

// ScorerConfig holds the pricing and risk parameters.
type ScorerConfig struct {
	// MinProfitThreshold is the executable gate, in percent.
	MinProfitThreshold decimal.Decimal
	// StartAmount is the nominal amount each path is simulated with.
	StartAmount decimal.Decimal
	// LowLiquidityThreshold and MediumLiquidityThreshold gate the risk
	// penalties on the thinnest leg's combined volume.
	LowLiquidityThreshold    decimal.Decimal
	MediumLiquidityThreshold decimal.Decimal
}

// OpportunityScorer computes fee-adjusted compound profit and a bounded risk
// score for each path. It is a pure computation over the cycle's ticker set.
type OpportunityScorer struct {
	config ScorerConfig
	logger *logrus.Logger
}

// NewOpportunityScorer creates the default profit/risk scorer.
func NewOpportunityScorer(config ScorerConfig, logger *logrus.Logger) *OpportunityScorer {
	if config.StartAmount.LessThanOrEqual(decimal.Zero) {
		config.StartAmount = decimal.NewFromInt(1)
	}
	if config.LowLiquidityThreshold.IsZero() {
		config.LowLiquidityThreshold = decimal.NewFromInt(10000)
	}
	if config.MediumLiquidityThreshold.IsZero() {
		config.MediumLiquidityThreshold = decimal.NewFromInt(50000)
	}
	return &OpportunityScorer{config: config, logger: logger}
}

var _ Scorer = (*OpportunityScorer)(nil)

// Score prices every path whose three tickers are present and returns the
// snapshot sorted by descending profit, ascending risk as tiebreak.
// Non-executable paths stay in the snapshot, marked, so monitoring can show
// near-misses; paths with a missing or malformed ticker are excluded rather
// than priced with defaults.
func (s *OpportunityScorer) Score(venue string, paths []models.TriangularPath, tickers map[string]models.TradingPair, now time.Time) *models.MarketSnapshot {
	snapshot := &models.MarketSnapshot{
		ID:        uuid.New().String(),
		Venue:     venue,
		Timestamp: now,
		Pairs:     make([]models.TradingPair, 0, len(tickers)),
	}
	for _, pair := range tickers {
		snapshot.Pairs = append(snapshot.Pairs, pair)
	}
	sort.Slice(snapshot.Pairs, func(i, j int) bool { return snapshot.Pairs[i].Symbol < snapshot.Pairs[j].Symbol })

	for _, path := range paths {
		opp, ok := s.price(path, tickers, now)
		if !ok {
			continue
		}
		snapshot.Opportunities = append(snapshot.Opportunities, opp)
	}

	sort.SliceStable(snapshot.Opportunities, func(i, j int) bool {
		a, b := snapshot.Opportunities[i], snapshot.Opportunities[j]
		switch a.ProfitPercentage.Cmp(b.ProfitPercentage) {
		case 1:
			return true
		case -1:
			return false
		default:
			return a.RiskScore < b.RiskScore
		}
	})

	return snapshot
}

// PricePath simulates the path's legs in order starting from the given
// amount: a sell leg multiplies by bid*(1-fee), a buy leg divides by the ask
// then multiplies by (1-fee). It fails when a leg's ticker is missing from
// the set or carries a non-positive price in the traded direction.
func PricePath(path models.TriangularPath, tickers map[string]models.TradingPair, start decimal.Decimal) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	amount := start

	for _, leg := range path.Legs {
		pair, ok := tickers[leg.Symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("no ticker for %s", leg.Symbol)
		}

		fee := pair.FeeRate
		switch leg.Direction {
		case models.Sell:
			if pair.Bid.LessThanOrEqual(decimal.Zero) {
				return decimal.Zero, fmt.Errorf("non-positive bid for %s", leg.Symbol)
			}
			amount = amount.Mul(pair.Bid).Mul(one.Sub(fee))
		case models.Buy:
			if pair.Ask.LessThanOrEqual(decimal.Zero) {
				return decimal.Zero, fmt.Errorf("non-positive ask for %s", leg.Symbol)
			}
			amount = amount.Div(pair.Ask).Mul(one.Sub(fee))
		default:
			return decimal.Zero, fmt.Errorf("unknown trade direction %q", leg.Direction)
		}
	}
	return amount, nil
}

// price builds the full opportunity for one path, or reports false when the
// path cannot be priced against this cycle's tickers.
func (s *OpportunityScorer) price(path models.TriangularPath, tickers map[string]models.TradingPair, now time.Time) (models.Opportunity, bool) {
	pairs := make([]models.TradingPair, 0, len(path.Legs))
	for _, leg := range path.Legs {
		pair, ok := tickers[leg.Symbol]
		if !ok {
			// Stale or missing price: exclude the path this cycle.
			return models.Opportunity{}, false
		}
		pairs = append(pairs, pair)
	}

	start := s.config.StartAmount
	amount, err := PricePath(path, tickers, start)
	if err != nil {
		s.logger.WithField("path", path.String()).WithError(err).Error("Dropping unpriceable path")
		return models.Opportunity{}, false
	}

	profitAmount := amount.Sub(start)
	profitPct := profitAmount.Div(start).Mul(decimal.NewFromInt(100))
	executable := profitPct.GreaterThanOrEqual(s.config.MinProfitThreshold)

	reason := "below profit threshold"
	if executable {
		reason = "meets profit threshold"
	}

	return models.Opportunity{
		ID:               uuid.New().String(),
		Path:             path,
		Pairs:            pairs,
		StartAmount:      start,
		FinalAmount:      amount,
		ProfitAmount:     profitAmount,
		ProfitPercentage: profitPct,
		CompoundRate:     amount.Div(start),
		RiskScore:        s.riskScore(pairs),
		Executable:       executable,
		Reason:           reason,
		DetectedAt:       now,
	}, true
}

// riskScore is 0-100, lower is better: average spread across legs times ten,
// a liquidity penalty on the thinnest leg and a fixed complexity penalty for
// any three-leg path. The cap applies to the final sum only.
func (s *OpportunityScorer) riskScore(pairs []models.TradingPair) float64 {
	if len(pairs) == 0 {
		return 100
	}

	spreadSum := decimal.Zero
	minVolume := decimal.Decimal{}
	for i, pair := range pairs {
		spreadSum = spreadSum.Add(pair.Spread())
		volume := pair.BidVolume.Add(pair.AskVolume)
		if i == 0 || volume.LessThan(minVolume) {
			minVolume = volume
		}
	}
	avgSpread, _ := spreadSum.Div(decimal.NewFromInt(int64(len(pairs)))).Float64()

	risk := avgSpread * 10

	if minVolume.LessThan(s.config.LowLiquidityThreshold) {
		risk += 20
	} else if minVolume.LessThan(s.config.MediumLiquidityThreshold) {
		risk += 10
	}

	// Three sequential legs always carry execution risk.
	risk += 5

	if risk > 100 {
		risk = 100
	}
	return risk
}
