package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// Protective executor outcomes: expected, no capital at risk.
var (
	// ErrRateLimitExceeded means the hourly trade budget is exhausted.
	ErrRateLimitExceeded = errors.New("executor: trade rate limit exceeded")
	// ErrStaleOpportunity means revalidation found the profit gone.
	ErrStaleOpportunity = errors.New("executor: opportunity no longer profitable")
)

// maxHistory bounds the in-memory execution history used for statistics.
const maxHistory = 256

// ExecutorConfig holds the execution parameters.
type ExecutorConfig struct {
	Venue              string
	MinProfitThreshold decimal.Decimal
	FreshnessWindow    time.Duration
}

// TradeExecutor turns one selected opportunity into a sequence of three
// market orders. Legs are strictly sequential: each leg's proceeds fund the
// next. There is no automatic unwind; a failure after a fill is surfaced as a
// partial execution for the alerting collaborator to act on.
type TradeExecutor struct {
	gateway *MarketGateway
	budget  *RateBudget
	config  ExecutorConfig
	logger  *logrus.Logger
	tracer  trace.Tracer

	mu      sync.Mutex
	history []models.ExecutionRecord
}

// NewTradeExecutor creates an executor bound to one venue's gateway.
func NewTradeExecutor(gateway *MarketGateway, budget *RateBudget, config ExecutorConfig, logger *logrus.Logger, tracer trace.Tracer) *TradeExecutor {
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = 2 * time.Second
	}
	return &TradeExecutor{
		gateway: gateway,
		budget:  budget,
		config:  config,
		logger:  logger,
		tracer:  tracer,
	}
}

// Execute runs the full attempt state machine:
// PENDING → VALIDATING → LEG1 → LEG2 → LEG3 → SETTLED, any leg → FAILED.
// The returned record is always non-nil and finalized exactly once; the
// error, when present, classifies why the attempt stopped.
func (e *TradeExecutor) Execute(ctx context.Context, opp models.Opportunity) (*models.ExecutionRecord, error) {
	ctx, span := e.tracer.Start(ctx, "executor.Execute",
		trace.WithAttributes(
			attribute.String("opportunity_id", opp.ID),
			attribute.String("path", opp.Path.String()),
		))
	defer span.End()

	record := &models.ExecutionRecord{
		ID:             uuid.New().String(),
		OpportunityID:  opp.ID,
		Venue:          e.config.Venue,
		Path:           opp.Path.String(),
		State:          models.ExecutionPending,
		StartAmount:    opp.StartAmount,
		ExpectedProfit: opp.ProfitAmount,
		StartedAt:      time.Now(),
	}

	// Rate check: protective, nothing moved yet.
	if !e.budget.TryAcquire() {
		e.finalize(record, models.ExecutionFailed, models.OutcomeFailed, ErrRateLimitExceeded.Error())
		e.logger.WithField("opportunity_id", opp.ID).Warn("Trade rate limit exceeded, skipping execution")
		span.SetStatus(codes.Error, "rate limit exceeded")
		return record, ErrRateLimitExceeded
	}

	// Revalidation: refetch the path's tickers and re-price before any
	// capital moves.
	record.State = models.ExecutionValidating
	tickers, expectedProfitPct, err := e.revalidate(ctx, opp)
	if err != nil {
		e.finalize(record, models.ExecutionFailed, models.OutcomeFailed, err.Error())
		e.logger.WithFields(logrus.Fields{
			"opportunity_id": opp.ID,
			"path":           opp.Path.String(),
		}).WithError(err).Warn("Opportunity failed revalidation, no capital moved")
		span.SetStatus(codes.Error, "stale opportunity")
		return record, err
	}

	// Once the first leg is submitted the attempt must run to completion;
	// cancelling the caller's context no longer aborts it.
	legCtx := context.WithoutCancel(ctx)

	legStates := []models.ExecutionState{models.ExecutionLeg1, models.ExecutionLeg2, models.ExecutionLeg3}
	one := decimal.NewFromInt(1)
	amount := opp.StartAmount

	for i, leg := range opp.Path.Legs {
		record.State = legStates[i]
		pair := tickers[leg.Symbol]

		var expectedPrice, requested decimal.Decimal
		if leg.Direction == models.Sell {
			expectedPrice = pair.Bid
			requested = amount
		} else {
			expectedPrice = pair.Ask
			requested = amount.Div(pair.Ask)
		}

		legRecord := models.ExecutionLeg{
			Step:            i + 1,
			Symbol:          leg.Symbol,
			Direction:       leg.Direction,
			RequestedAmount: requested,
			ExpectedPrice:   expectedPrice,
		}

		e.logger.WithFields(logrus.Fields{
			"execution_id": record.ID,
			"step":         i + 1,
			"symbol":       leg.Symbol,
			"direction":    leg.Direction,
			"amount":       requested.String(),
		}).Info("Placing leg order")

		fill, err := e.gateway.PlaceMarketOrder(legCtx, e.config.Venue, leg.Symbol, leg.Direction, requested)
		if err != nil {
			// A gateway failure mid-sequence is a leg failure, never retried
			// here: retrying a partially filled multi-leg trade compounds
			// exposure.
			record.Legs = append(record.Legs, legRecord)
			outcome := models.OutcomeFailed
			if record.CapitalMoved() {
				outcome = models.OutcomePartial
			}
			e.finalize(record, models.ExecutionFailed, outcome, fmt.Sprintf("leg %d: %v", i+1, err))
			e.logExecutionFailure(record, i+1, err)
			span.SetStatus(codes.Error, "leg failure")
			return record, err
		}

		legRecord.FilledAmount = fill.FilledAmount
		legRecord.FillPrice = fill.AvgFillPrice
		legRecord.OrderID = fill.OrderID
		legRecord.Filled = true
		if expectedPrice.IsPositive() {
			legRecord.Slippage = fill.AvgFillPrice.Sub(expectedPrice).Div(expectedPrice).Mul(decimal.NewFromInt(100))
		}
		record.Legs = append(record.Legs, legRecord)
		record.TotalSlippage = record.TotalSlippage.Add(legRecord.Slippage)

		// What the fill leaves us to fund the next leg, net of the taker fee.
		if leg.Direction == models.Sell {
			amount = fill.FilledAmount.Mul(fill.AvgFillPrice).Mul(one.Sub(pair.FeeRate))
		} else {
			amount = fill.FilledAmount.Mul(one.Sub(pair.FeeRate))
		}

		// A partial fill leaves stranded inventory; stop before the next leg
		// compounds it.
		if fill.FilledAmount.LessThan(requested) {
			e.finalize(record, models.ExecutionFailed, models.OutcomePartial,
				fmt.Sprintf("leg %d partially filled: %s of %s", i+1, fill.FilledAmount, requested))
			e.logExecutionFailure(record, i+1, errors.New("partial fill"))
			span.SetStatus(codes.Error, "partial fill")
			return record, fmt.Errorf("leg %d partially filled", i+1)
		}
	}

	record.FinalAmount = amount
	record.RealizedProfit = amount.Sub(opp.StartAmount)
	e.finalize(record, models.ExecutionSettled, models.OutcomeSuccess, "")

	e.logger.WithFields(logrus.Fields{
		"execution_id":    record.ID,
		"path":            record.Path,
		"expected_profit": expectedProfitPct.StringFixed(4),
		"realized_profit": record.RealizedProfit.String(),
		"total_slippage":  record.TotalSlippage.StringFixed(4),
	}).Info("Arbitrage execution settled")

	return record, nil
}

// revalidate refetches the path's three tickers and re-prices the cycle.
// Anything below the profit threshold aborts the attempt before any order.
func (e *TradeExecutor) revalidate(ctx context.Context, opp models.Opportunity) (map[string]models.TradingPair, decimal.Decimal, error) {
	symbols := make([]string, 0, len(opp.Path.Legs))
	for _, leg := range opp.Path.Legs {
		symbols = append(symbols, leg.Symbol)
	}

	tickers := e.gateway.FetchTickers(ctx, e.config.Venue, symbols)
	if len(tickers) < len(symbols) {
		return nil, decimal.Zero, fmt.Errorf("%w: tickers unavailable for revalidation", ErrStaleOpportunity)
	}

	final, err := PricePath(opp.Path, tickers, opp.StartAmount)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", ErrStaleOpportunity, err)
	}

	profitPct := final.Sub(opp.StartAmount).Div(opp.StartAmount).Mul(decimal.NewFromInt(100))
	if profitPct.LessThan(e.config.MinProfitThreshold) {
		return nil, decimal.Zero, fmt.Errorf("%w: profit %s%% below threshold %s%%",
			ErrStaleOpportunity, profitPct.StringFixed(4), e.config.MinProfitThreshold)
	}
	return tickers, profitPct, nil
}

// finalize stamps the record's terminal state exactly once and appends it to
// the bounded history.
func (e *TradeExecutor) finalize(record *models.ExecutionRecord, state models.ExecutionState, outcome models.ExecutionOutcome, errMsg string) {
	record.State = state
	record.Outcome = outcome
	record.Error = errMsg
	record.CompletedAt = time.Now()

	e.mu.Lock()
	e.history = append(e.history, *record)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
	e.mu.Unlock()
}

func (e *TradeExecutor) logExecutionFailure(record *models.ExecutionRecord, step int, err error) {
	entry := e.logger.WithFields(logrus.Fields{
		"execution_id": record.ID,
		"path":         record.Path,
		"step":         step,
		"outcome":      record.Outcome,
		"filled_legs":  record.FilledLegs(),
	}).WithError(err)

	if record.Outcome == models.OutcomePartial {
		// Capital is stranded mid-path; this needs operator attention.
		entry.Error("Partial execution, manual intervention required")
	} else {
		entry.Warn("Execution aborted without capital movement")
	}
}

// History returns a copy of the recent execution records, newest last.
func (e *TradeExecutor) History() []models.ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ExecutionRecord, len(e.history))
	copy(out, e.history)
	return out
}

// Stats aggregates the recent execution history.
func (e *TradeExecutor) Stats() models.ExecutionStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := models.ExecutionStats{TotalAttempts: len(e.history)}
	settledSlippage := decimal.Zero
	for _, record := range e.history {
		switch record.Outcome {
		case models.OutcomeSuccess:
			stats.Settled++
			stats.TotalProfit = stats.TotalProfit.Add(record.RealizedProfit)
			settledSlippage = settledSlippage.Add(record.TotalSlippage)
		case models.OutcomePartial:
			stats.Partial++
		default:
			stats.Failed++
		}
	}
	if stats.Settled > 0 {
		n := decimal.NewFromInt(int64(stats.Settled))
		stats.AverageProfit = stats.TotalProfit.Div(n)
		stats.AverageSlippage = settledSlippage.Div(n)
	}
	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.Settled) / float64(stats.TotalAttempts) * 100
	}
	return stats
}
