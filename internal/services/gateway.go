package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arbihedron/arbihedron-go/internal/cache"
	"github.com/arbihedron/arbihedron-go/internal/exchange"
	"github.com/arbihedron/arbihedron-go/internal/models"
)

// MarketGateway is the sole chokepoint for outbound exchange calls. Every
// call passes through the per-venue rate limiter, then a per-operation-class
// circuit breaker; transient failures of read operations are retried with
// backoff. Ticker reads are served from the short-TTL cache when fresh.
type MarketGateway struct {
	client          exchange.Client
	tickers         *cache.TickerCache
	limiter         *VenueRateLimiter
	breakers        *CircuitBreakerManager
	retryPolicy     RetryPolicy
	defaultTakerFee decimal.Decimal
	logger          *logrus.Logger
	tracer          trace.Tracer
}

// NewMarketGateway wires the resilience layers around the exchange client.
func NewMarketGateway(
	client exchange.Client,
	tickers *cache.TickerCache,
	limiter *VenueRateLimiter,
	breakers *CircuitBreakerManager,
	retryPolicy RetryPolicy,
	defaultTakerFee decimal.Decimal,
	logger *logrus.Logger,
	tracer trace.Tracer,
) *MarketGateway {
	if defaultTakerFee.IsZero() {
		defaultTakerFee = decimal.NewFromFloat(0.001)
	}
	return &MarketGateway{
		client:          client,
		tickers:         tickers,
		limiter:         limiter,
		breakers:        breakers,
		retryPolicy:     retryPolicy,
		defaultTakerFee: defaultTakerFee,
		logger:          logger,
		tracer:          tracer,
	}
}

// FetchTicker returns a ticker snapshot for (venue, symbol), serving from the
// cache when fresh and populating it after a live fetch.
func (g *MarketGateway) FetchTicker(ctx context.Context, venue, symbol string) (models.TradingPair, error) {
	if pair, ok := g.tickers.Get(venue, symbol); ok {
		return pair, nil
	}

	ctx, span := g.tracer.Start(ctx, "gateway.FetchTicker",
		trace.WithAttributes(attribute.String("venue", venue), attribute.String("symbol", symbol)))
	defer span.End()

	if err := g.limiter.Acquire(ctx, venue); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.TradingPair{}, err
	}

	var resp *exchange.TickerResponse
	breaker := g.breakers.GetOrCreate(venue + ":ticker")
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return RetryTransient(ctx, g.retryPolicy, g.logger, "fetch_ticker", func(ctx context.Context) error {
			var fetchErr error
			resp, fetchErr = g.client.FetchTicker(ctx, venue, symbol)
			return fetchErr
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.TradingPair{}, err
	}

	pair, err := g.toTradingPair(venue, symbol, resp)
	if err != nil {
		// Invariant violation in upstream data; drop the snapshot.
		g.logger.WithFields(logrus.Fields{
			"venue":  venue,
			"symbol": symbol,
		}).WithError(err).Error("Discarding malformed ticker")
		span.SetStatus(codes.Error, err.Error())
		return models.TradingPair{}, err
	}

	g.tickers.Put(venue, symbol, pair)
	return pair, nil
}

// FetchTickers fetches many symbols concurrently and returns whichever
// succeeded, keyed by symbol. The rate limiter is the admission-control
// point, so the fan-out itself is not separately bounded. A scan cycle can
// proceed with a partial set; paths with missing tickers are excluded later.
func (g *MarketGateway) FetchTickers(ctx context.Context, venue string, symbols []string) map[string]models.TradingPair {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]models.TradingPair, len(symbols))
	)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			pair, err := g.FetchTicker(ctx, venue, symbol)
			if err != nil {
				g.logger.WithFields(logrus.Fields{
					"venue":  venue,
					"symbol": symbol,
				}).WithError(err).Debug("Ticker fetch failed during fan-out")
				return
			}
			mu.Lock()
			results[symbol] = pair
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	return results
}

// FetchMarkets lists a venue's tradable symbols through the resilience stack.
func (g *MarketGateway) FetchMarkets(ctx context.Context, venue string) ([]string, error) {
	if err := g.limiter.Acquire(ctx, venue); err != nil {
		return nil, err
	}

	var resp *exchange.MarketsResponse
	breaker := g.breakers.GetOrCreate(venue + ":ticker")
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return RetryTransient(ctx, g.retryPolicy, g.logger, "fetch_markets", func(ctx context.Context) error {
			var fetchErr error
			resp, fetchErr = g.client.FetchMarkets(ctx, venue)
			return fetchErr
		})
	})
	if err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// PlaceMarketOrder submits one market order. Results are never cached. A
// fresh client order ID makes connector-side resubmission idempotent, so
// transient failures may be retried with the same ID; a tripped breaker fails
// fast instead of retrying a live order blindly.
func (g *MarketGateway) PlaceMarketOrder(ctx context.Context, venue, symbol string, side models.TradeDirection, amount decimal.Decimal) (*exchange.FillResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.PlaceMarketOrder",
		trace.WithAttributes(
			attribute.String("venue", venue),
			attribute.String("symbol", symbol),
			attribute.String("side", string(side)),
		))
	defer span.End()

	if err := g.limiter.Acquire(ctx, venue); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := &exchange.OrderRequest{
		Venue:         venue,
		Symbol:        symbol,
		Side:          string(side),
		Amount:        amount,
		ClientOrderID: uuid.New().String(),
	}

	var fill *exchange.FillResult
	breaker := g.breakers.GetOrCreate(venue + ":order")
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return RetryTransient(ctx, g.retryPolicy, g.logger, "place_order", func(ctx context.Context) error {
			var orderErr error
			fill, orderErr = g.client.PlaceMarketOrder(ctx, req)
			return orderErr
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"venue":           venue,
		"symbol":          symbol,
		"side":            side,
		"requested":       amount.String(),
		"filled":          fill.FilledAmount.String(),
		"avg_fill_price":  fill.AvgFillPrice.String(),
		"client_order_id": req.ClientOrderID,
	}).Info("Market order placed")

	return fill, nil
}

// InvalidateTickers drops all cached tickers for a venue, used on reconnect
// or when the symbol list changes.
func (g *MarketGateway) InvalidateTickers(venue string) int {
	return g.tickers.Invalidate(venue + ":*")
}

// BreakerStates exposes the current circuit breaker states for health
// reporting.
func (g *MarketGateway) BreakerStates() map[string]string {
	return g.breakers.States()
}

// toTradingPair converts a connector ticker into the domain snapshot and
// enforces its invariants.
func (g *MarketGateway) toTradingPair(venue, symbol string, resp *exchange.TickerResponse) (models.TradingPair, error) {
	base, quote, err := models.SplitSymbol(symbol)
	if err != nil {
		return models.TradingPair{}, err
	}
	pair := models.TradingPair{
		Venue:     venue,
		Symbol:    symbol,
		Base:      base,
		Quote:     quote,
		Bid:       resp.Bid,
		Ask:       resp.Ask,
		BidVolume: resp.BidVolume,
		AskVolume: resp.AskVolume,
		FeeRate:   exchange.TradingFee(resp, g.defaultTakerFee),
		Timestamp: resp.Timestamp,
	}
	if err := pair.Validate(); err != nil {
		return models.TradingPair{}, fmt.Errorf("invalid ticker: %w", err)
	}
	return pair, nil
}
