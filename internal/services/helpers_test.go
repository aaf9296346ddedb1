package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/arbihedron/arbihedron-go/internal/cache"
	"github.com/arbihedron/arbihedron-go/internal/exchange"
	"github.com/arbihedron/arbihedron-go/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func d(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// ticker builds a valid top-of-book snapshot for tests.
func ticker(symbol string, bid, ask float64) models.TradingPair {
	base, quote, _ := models.SplitSymbol(symbol)
	return models.TradingPair{
		Venue:     "kraken",
		Symbol:    symbol,
		Base:      base,
		Quote:     quote,
		Bid:       d(bid),
		Ask:       d(ask),
		BidVolume: d(100000),
		AskVolume: d(100000),
		FeeRate:   d(0.001),
		Timestamp: time.Now(),
	}
}

// fakeExchangeClient scripts connector behavior per call.
type fakeExchangeClient struct {
	mu sync.Mutex

	tickers map[string]*exchange.TickerResponse
	markets []string

	tickerErr  map[string]error
	marketsErr error

	orderFn func(req *exchange.OrderRequest) (*exchange.FillResult, error)

	tickerCalls int
	orderCalls  []*exchange.OrderRequest
}

func newFakeExchangeClient() *fakeExchangeClient {
	return &fakeExchangeClient{
		tickers:   make(map[string]*exchange.TickerResponse),
		tickerErr: make(map[string]error),
	}
}

func (f *fakeExchangeClient) setTicker(symbol string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickers[symbol] = &exchange.TickerResponse{
		Venue:     "kraken",
		Symbol:    symbol,
		Bid:       d(bid),
		Ask:       d(ask),
		BidVolume: d(100000),
		AskVolume: d(100000),
		Fee:       d(0.001),
		Timestamp: time.Now(),
	}
}

func (f *fakeExchangeClient) FetchTicker(ctx context.Context, venue, symbol string) (*exchange.TickerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerCalls++
	if err, ok := f.tickerErr[symbol]; ok {
		return nil, err
	}
	resp, ok := f.tickers[symbol]
	if !ok {
		return nil, exchange.ErrSymbolNotFound
	}
	return resp, nil
}

func (f *fakeExchangeClient) FetchMarkets(ctx context.Context, venue string) (*exchange.MarketsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	return &exchange.MarketsResponse{Venue: venue, Symbols: f.markets}, nil
}

func (f *fakeExchangeClient) PlaceMarketOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.FillResult, error) {
	f.mu.Lock()
	orderFn := f.orderFn
	f.orderCalls = append(f.orderCalls, req)
	f.mu.Unlock()

	if orderFn != nil {
		return orderFn(req)
	}
	return &exchange.FillResult{
		OrderID:      "order-" + req.ClientOrderID,
		FilledAmount: req.Amount,
		AvgFillPrice: d(1),
		Status:       "filled",
	}, nil
}

func (f *fakeExchangeClient) Close() error { return nil }

func (f *fakeExchangeClient) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orderCalls)
}

var _ exchange.Client = (*fakeExchangeClient)(nil)

// newTestGateway assembles a gateway with permissive resilience settings so
// individual tests can tighten what they exercise.
func newTestGateway(client exchange.Client) *MarketGateway {
	return NewMarketGateway(
		client,
		cache.NewTickerCache(time.Minute, nil),
		NewVenueRateLimiter(RateLimiterConfig{RequestsPerSecond: 1000, Burst: 1000, MaxWait: time.Second}),
		NewCircuitBreakerManager(CircuitBreakerConfig{FailureThreshold: 100, RecoveryTimeout: time.Minute}, testLogger()),
		RetryPolicy{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1},
		d(0.001),
		testLogger(),
		testTracer(),
	)
}
