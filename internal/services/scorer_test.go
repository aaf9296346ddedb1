package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// referenceTickers is the canonical pricing scenario: BTC/USDT 50000/50010,
// ETH/BTC 0.05/0.0501, ETH/USDT 2510/2511, taker fee 0.001 everywhere.
func referenceTickers() map[string]models.TradingPair {
	return map[string]models.TradingPair{
		"BTC/USDT": ticker("BTC/USDT", 50000, 50010),
		"ETH/BTC":  ticker("ETH/BTC", 0.05, 0.0501),
		"ETH/USDT": ticker("ETH/USDT", 2510, 2511),
	}
}

func btcEthUsdtPath() models.TriangularPath {
	return models.TriangularPath{
		Currencies: []string{"BTC", "ETH", "USDT", "BTC"},
		Legs: []models.PathLeg{
			{Symbol: "ETH/BTC", Direction: models.Buy, From: "BTC", To: "ETH"},
			{Symbol: "ETH/USDT", Direction: models.Sell, From: "ETH", To: "USDT"},
			{Symbol: "BTC/USDT", Direction: models.Buy, From: "USDT", To: "BTC"},
		},
	}
}

func newScorer(threshold float64) *OpportunityScorer {
	return NewOpportunityScorer(ScorerConfig{
		MinProfitThreshold: d(threshold),
		StartAmount:        decimal.NewFromInt(1),
	}, testLogger())
}

func TestPricePathReferenceScenario(t *testing.T) {
	// Buy ETH with BTC, sell ETH for USDT, buy BTC with USDT:
	// 1 / 0.0501 * 0.999 * 2510 * 0.999 / 50010 * 0.999 ≈ 0.9987933.
	final, err := PricePath(btcEthUsdtPath(), referenceTickers(), decimal.NewFromInt(1))
	require.NoError(t, err)

	profitPct := final.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	assert.True(t, profitPct.Round(4).Equal(d(-0.1207)),
		"expected -0.1207%%, got %s%%", profitPct.Round(4))
}

func TestPricePathFailsOnMissingTicker(t *testing.T) {
	tickers := referenceTickers()
	delete(tickers, "ETH/USDT")

	_, err := PricePath(btcEthUsdtPath(), tickers, decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestPricePathFailsOnNonPositivePrice(t *testing.T) {
	tickers := referenceTickers()
	pair := tickers["ETH/BTC"]
	pair.Ask = decimal.Zero
	pair.Bid = decimal.Zero
	tickers["ETH/BTC"] = pair

	_, err := PricePath(btcEthUsdtPath(), tickers, decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestPricePathProfitDecreasesWithFee(t *testing.T) {
	lowFee := referenceTickers()
	highFee := referenceTickers()
	for symbol, pair := range highFee {
		pair.FeeRate = d(0.002)
		highFee[symbol] = pair
	}

	low, err := PricePath(btcEthUsdtPath(), lowFee, decimal.NewFromInt(1))
	require.NoError(t, err)
	high, err := PricePath(btcEthUsdtPath(), highFee, decimal.NewFromInt(1))
	require.NoError(t, err)

	assert.True(t, high.LessThan(low), "higher fees must never increase profit")
}

func TestScoreMarksUnprofitablePathNotExecutable(t *testing.T) {
	s := newScorer(0.5)
	snapshot := s.Score("kraken", []models.TriangularPath{btcEthUsdtPath()}, referenceTickers(), time.Now())

	require.Len(t, snapshot.Opportunities, 1)
	opp := snapshot.Opportunities[0]
	assert.False(t, opp.Executable)
	assert.Equal(t, "below profit threshold", opp.Reason)
	assert.Equal(t, 0, snapshot.ExecutableCount())
}

func TestScoreThresholdGateIsInclusive(t *testing.T) {
	// Fee-free books chosen so the cycle returns exactly +1%.
	tickers := map[string]models.TradingPair{
		"ETH/BTC":  ticker("ETH/BTC", 0.05, 0.05),
		"ETH/USDT": ticker("ETH/USDT", 2525, 2525),
		"BTC/USDT": ticker("BTC/USDT", 50000, 50000),
	}
	for symbol, pair := range tickers {
		pair.FeeRate = decimal.Zero
		tickers[symbol] = pair
	}

	// 1 / 0.05 = 20 ETH; * 2525 = 50500 USDT; / 50000 = 1.01 BTC → +1%.
	final, err := PricePath(btcEthUsdtPath(), tickers, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, final.Equal(d(1.01)), "got %s", final)

	exact := NewOpportunityScorer(ScorerConfig{MinProfitThreshold: d(1.0), StartAmount: decimal.NewFromInt(1)}, testLogger())
	snapshot := exact.Score("kraken", []models.TriangularPath{btcEthUsdtPath()}, tickers, time.Now())
	require.Len(t, snapshot.Opportunities, 1)
	assert.True(t, snapshot.Opportunities[0].Executable, "profit equal to threshold is executable")

	above := NewOpportunityScorer(ScorerConfig{MinProfitThreshold: d(1.000001), StartAmount: decimal.NewFromInt(1)}, testLogger())
	snapshot = above.Score("kraken", []models.TriangularPath{btcEthUsdtPath()}, tickers, time.Now())
	require.Len(t, snapshot.Opportunities, 1)
	assert.False(t, snapshot.Opportunities[0].Executable, "profit a hair under threshold is not")
}

func TestScoreExcludesPathsWithMissingTickers(t *testing.T) {
	tickers := referenceTickers()
	delete(tickers, "ETH/BTC")

	s := newScorer(0.5)
	snapshot := s.Score("kraken", []models.TriangularPath{btcEthUsdtPath()}, tickers, time.Now())
	assert.Empty(t, snapshot.Opportunities, "unpriceable paths are excluded, not defaulted")
}

func TestScoreSortsByProfitThenRisk(t *testing.T) {
	profitable := btcEthUsdtPath()
	// The reverse orientation prices differently against the same books.
	reversed := models.TriangularPath{
		Currencies: []string{"BTC", "USDT", "ETH", "BTC"},
		Legs: []models.PathLeg{
			{Symbol: "BTC/USDT", Direction: models.Sell, From: "BTC", To: "USDT"},
			{Symbol: "ETH/USDT", Direction: models.Buy, From: "USDT", To: "ETH"},
			{Symbol: "ETH/BTC", Direction: models.Sell, From: "ETH", To: "BTC"},
		},
	}

	s := newScorer(0.5)
	snapshot := s.Score("kraken", []models.TriangularPath{reversed, profitable}, referenceTickers(), time.Now())
	require.Len(t, snapshot.Opportunities, 2)

	first := snapshot.Opportunities[0].ProfitPercentage
	second := snapshot.Opportunities[1].ProfitPercentage
	assert.True(t, first.GreaterThanOrEqual(second), "snapshot must be sorted best first")
}

func TestRiskScoreLiquidityPenalties(t *testing.T) {
	s := newScorer(0.5)

	thin := []models.TradingPair{ticker("BTC/USDT", 100, 100)}
	thin[0].BidVolume = d(2000)
	thin[0].AskVolume = d(2000)
	// min volume 4000 < 10000: +20, zero spread, +5 complexity.
	assert.InDelta(t, 25, s.riskScore(thin), 0.001)

	medium := []models.TradingPair{ticker("BTC/USDT", 100, 100)}
	medium[0].BidVolume = d(20000)
	medium[0].AskVolume = d(20000)
	// min volume 40000 < 50000: +10, +5 complexity.
	assert.InDelta(t, 15, s.riskScore(medium), 0.001)

	deep := []models.TradingPair{ticker("BTC/USDT", 100, 100)}
	// Default helper volumes are 100000 per side.
	assert.InDelta(t, 5, s.riskScore(deep), 0.001)
}

func TestRiskScoreCapsAtHundred(t *testing.T) {
	s := newScorer(0.5)

	// A grotesque 20% spread alone contributes 200 before the cap.
	wide := []models.TradingPair{ticker("BTC/USDT", 100, 120)}
	wide[0].BidVolume = d(1)
	wide[0].AskVolume = d(1)
	assert.Equal(t, 100.0, s.riskScore(wide))

	assert.Equal(t, 100.0, s.riskScore(nil))
}

func TestScoreSnapshotPairsSorted(t *testing.T) {
	s := newScorer(0.5)
	snapshot := s.Score("kraken", []models.TriangularPath{btcEthUsdtPath()}, referenceTickers(), time.Now())

	require.Len(t, snapshot.Pairs, 3)
	assert.Equal(t, "BTC/USDT", snapshot.Pairs[0].Symbol)
	assert.Equal(t, "ETH/BTC", snapshot.Pairs[1].Symbol)
	assert.Equal(t, "ETH/USDT", snapshot.Pairs[2].Symbol)
}
