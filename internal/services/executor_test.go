package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbihedron/arbihedron-go/internal/exchange"
	"github.com/arbihedron/arbihedron-go/internal/models"
)

// profitableClient scripts fee-free-looking books where the BTC→ETH→USDT→BTC
// cycle nets about +0.70% after 0.1% fees per leg.
func profitableClient() *fakeExchangeClient {
	client := newFakeExchangeClient()
	client.setTicker("ETH/BTC", 0.05, 0.05)
	client.setTicker("ETH/USDT", 2525, 2525)
	client.setTicker("BTC/USDT", 50000, 50000)
	// Orders fill fully at the quoted price.
	client.orderFn = func(req *exchange.OrderRequest) (*exchange.FillResult, error) {
		prices := map[string]float64{"ETH/BTC": 0.05, "ETH/USDT": 2525, "BTC/USDT": 50000}
		return &exchange.FillResult{
			OrderID:      "order-" + req.ClientOrderID,
			FilledAmount: req.Amount,
			AvgFillPrice: d(prices[req.Symbol]),
			Status:       "filled",
		}, nil
	}
	return client
}

func testOpportunity() models.Opportunity {
	return models.Opportunity{
		ID:          "opp-1",
		Path:        btcEthUsdtPath(),
		StartAmount: decimal.NewFromInt(1),
		Executable:  true,
	}
}

func newTestExecutor(client *fakeExchangeClient, budget *RateBudget) *TradeExecutor {
	if budget == nil {
		budget = NewRateBudget(100, time.Hour, nil)
	}
	return NewTradeExecutor(newTestGateway(client), budget, ExecutorConfig{
		Venue:              "kraken",
		MinProfitThreshold: d(0.5),
		FreshnessWindow:    2 * time.Second,
	}, testLogger(), testTracer())
}

func TestExecuteSettlesProfitableOpportunity(t *testing.T) {
	client := profitableClient()
	e := newTestExecutor(client, nil)

	record, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionSettled, record.State)
	assert.Equal(t, models.OutcomeSuccess, record.Outcome)
	require.Len(t, record.Legs, 3)
	assert.Equal(t, 3, record.FilledLegs())
	assert.Equal(t, 3, client.orderCount())
	assert.True(t, record.RealizedProfit.IsPositive(), "got %s", record.RealizedProfit)
	// Fills landed at the expected prices: zero slippage per leg.
	assert.True(t, record.TotalSlippage.IsZero())
}

func TestExecuteRefusesWhenBudgetExhausted(t *testing.T) {
	client := profitableClient()
	budget := NewRateBudget(1, time.Hour, nil)
	require.True(t, budget.TryAcquire())

	e := newTestExecutor(client, budget)
	record, err := e.Execute(context.Background(), testOpportunity())

	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Equal(t, models.OutcomeFailed, record.Outcome)
	assert.False(t, record.CapitalMoved())
	assert.Equal(t, 0, client.orderCount(), "a budget refusal must not touch the exchange")
}

func TestExecuteRefusesStaleOpportunity(t *testing.T) {
	// Reference books price the cycle at about -0.12%: revalidation must
	// abort before any order.
	client := newFakeExchangeClient()
	client.setTicker("ETH/BTC", 0.05, 0.0501)
	client.setTicker("ETH/USDT", 2510, 2511)
	client.setTicker("BTC/USDT", 50000, 50010)

	e := newTestExecutor(client, nil)
	record, err := e.Execute(context.Background(), testOpportunity())

	assert.ErrorIs(t, err, ErrStaleOpportunity)
	assert.Equal(t, models.OutcomeFailed, record.Outcome)
	assert.False(t, record.CapitalMoved())
	assert.Equal(t, 0, client.orderCount())
}

func TestExecuteRefusesWhenRevalidationTickersUnavailable(t *testing.T) {
	client := profitableClient()
	client.tickerErr["ETH/USDT"] = exchange.ErrNetworkTimeout

	e := newTestExecutor(client, nil)
	_, err := e.Execute(context.Background(), testOpportunity())

	assert.ErrorIs(t, err, ErrStaleOpportunity)
	assert.Equal(t, 0, client.orderCount())
}

func TestExecuteLegFailureAfterFillIsPartial(t *testing.T) {
	client := profitableClient()
	baseFn := client.orderFn
	calls := 0
	client.orderFn = func(req *exchange.OrderRequest) (*exchange.FillResult, error) {
		calls++
		if calls == 2 {
			return nil, exchange.ErrExchangeRejected
		}
		return baseFn(req)
	}

	e := newTestExecutor(client, nil)
	record, err := e.Execute(context.Background(), testOpportunity())

	assert.ErrorIs(t, err, exchange.ErrExchangeRejected)
	assert.Equal(t, models.ExecutionFailed, record.State)
	assert.Equal(t, models.OutcomePartial, record.Outcome)
	assert.Equal(t, 1, record.FilledLegs())

	// The one submission for leg 1 and the failed attempt for leg 2; never a
	// compensating or repeated order.
	assert.Equal(t, 2, client.orderCount())
}

func TestExecuteFirstLegFailureIsFailedNotPartial(t *testing.T) {
	client := profitableClient()
	client.orderFn = func(req *exchange.OrderRequest) (*exchange.FillResult, error) {
		return nil, exchange.ErrInsufficientBalance
	}

	e := newTestExecutor(client, nil)
	record, err := e.Execute(context.Background(), testOpportunity())

	assert.ErrorIs(t, err, exchange.ErrInsufficientBalance)
	assert.Equal(t, models.OutcomeFailed, record.Outcome)
	assert.False(t, record.CapitalMoved())
}

func TestExecutePartialFillStopsSequence(t *testing.T) {
	client := profitableClient()
	baseFn := client.orderFn
	client.orderFn = func(req *exchange.OrderRequest) (*exchange.FillResult, error) {
		fill, err := baseFn(req)
		if err == nil && req.Symbol == "ETH/BTC" {
			fill.FilledAmount = req.Amount.Div(decimal.NewFromInt(2))
			fill.Status = "partial"
		}
		return fill, err
	}

	e := newTestExecutor(client, nil)
	record, err := e.Execute(context.Background(), testOpportunity())

	require.Error(t, err)
	assert.Equal(t, models.OutcomePartial, record.Outcome)
	assert.Equal(t, 1, client.orderCount(), "a partial fill must stop before the next leg")
}

func TestExecuteSurvivesCallerCancellationMidSequence(t *testing.T) {
	client := profitableClient()
	ctx, cancel := context.WithCancel(context.Background())

	baseFn := client.orderFn
	calls := 0
	client.orderFn = func(req *exchange.OrderRequest) (*exchange.FillResult, error) {
		calls++
		if calls == 1 {
			// Caller gives up while leg 1 is in flight.
			cancel()
		}
		return baseFn(req)
	}

	e := newTestExecutor(client, nil)
	record, err := e.Execute(ctx, testOpportunity())

	require.NoError(t, err, "an in-flight attempt must run to completion")
	assert.Equal(t, models.OutcomeSuccess, record.Outcome)
	assert.Equal(t, 3, client.orderCount())
}

func TestExecutorStats(t *testing.T) {
	client := profitableClient()
	e := newTestExecutor(client, nil)
	ctx := context.Background()

	_, err := e.Execute(ctx, testOpportunity())
	require.NoError(t, err)

	// A stale refusal counts as a failed attempt.
	client.tickerErr["ETH/USDT"] = exchange.ErrNetworkTimeout
	e.gateway.InvalidateTickers("kraken")
	_, err = e.Execute(ctx, testOpportunity())
	require.Error(t, err)

	stats := e.Stats()
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 1, stats.Settled)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Partial)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
	assert.True(t, stats.TotalProfit.IsPositive())

	history := e.History()
	assert.Len(t, history, 2)
}
