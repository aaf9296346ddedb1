package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// SnapshotSink receives completed market snapshots for persistence.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error
}

// ExecutionSink receives finalized execution records for persistence.
type ExecutionSink interface {
	SaveExecution(ctx context.Context, record *models.ExecutionRecord) error
}

// AlertSink is notified of executable opportunities and execution outcomes.
// Implementations must not block the scan loop.
type AlertSink interface {
	NotifyOpportunity(ctx context.Context, opp models.Opportunity)
	NotifyExecution(ctx context.Context, record *models.ExecutionRecord)
}

// ScannerConfig holds the scan loop parameters.
type ScannerConfig struct {
	Venue          string
	BaseCurrencies []string
	ScanInterval   time.Duration
	// MarketRefreshEvery controls how many scan cycles pass between symbol
	// list refreshes and graph rebuilds.
	MarketRefreshEvery int
	// PaperTrading disables live execution; opportunities are detected,
	// scored, persisted and alerted but never traded.
	PaperTrading bool
}

// MarketScanner drives the detection pipeline on a fixed interval: refresh
// the currency graph when the symbol list changes, fan-out fetch the tickers
// every discovered path needs, score all paths against the joined set, then
// hand the snapshot to the sinks and, when live trading is enabled, the best
// executable opportunity to the executor.
type MarketScanner struct {
	gateway    *MarketGateway
	graph      *CurrencyGraph
	pathFinder *PathFinder
	scorer     Scorer
	executor   *TradeExecutor
	config     ScannerConfig
	logger     *logrus.Logger
	tracer     trace.Tracer

	snapshots  SnapshotSink
	executions ExecutionSink
	alerts     AlertSink

	mu       sync.RWMutex
	paths    []models.TriangularPath
	symbols  []string
	lastScan time.Time
	latest   *models.MarketSnapshot

	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewMarketScanner wires the detection pipeline. The sinks are optional; a
// nil sink is skipped.
func NewMarketScanner(
	gateway *MarketGateway,
	graph *CurrencyGraph,
	pathFinder *PathFinder,
	scorer Scorer,
	executor *TradeExecutor,
	config ScannerConfig,
	snapshots SnapshotSink,
	executions ExecutionSink,
	alerts AlertSink,
	logger *logrus.Logger,
	tracer trace.Tracer,
) *MarketScanner {
	if config.ScanInterval <= 0 {
		config.ScanInterval = 5 * time.Second
	}
	if config.MarketRefreshEvery <= 0 {
		config.MarketRefreshEvery = 60
	}
	return &MarketScanner{
		gateway:    gateway,
		graph:      graph,
		pathFinder: pathFinder,
		scorer:     scorer,
		executor:   executor,
		config:     config,
		snapshots:  snapshots,
		executions: executions,
		alerts:     alerts,
		logger:     logger,
		tracer:     tracer,
	}
}

// Start launches the scan loop. It returns immediately; the loop runs until
// Stop or until the parent context is cancelled.
func (s *MarketScanner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})

	if err := s.refreshMarkets(ctx); err != nil {
		cancel()
		return err
	}

	go s.run(ctx)

	s.logger.WithFields(logrus.Fields{
		"venue":         s.config.Venue,
		"scan_interval": s.config.ScanInterval.String(),
		"paper_trading": s.config.PaperTrading,
		"paths":         len(s.currentPaths()),
	}).Info("Market scanner started")
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (s *MarketScanner) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.stopped
	s.logger.Info("Market scanner stopped")
}

func (s *MarketScanner) run(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	cycle := 0
	// First cycle fires immediately rather than waiting one interval.
	s.scanCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle++
			if cycle%s.config.MarketRefreshEvery == 0 {
				if err := s.refreshMarkets(ctx); err != nil {
					s.logger.WithError(err).Warn("Market refresh failed, keeping previous graph")
				}
			}
			s.scanCycle(ctx)
		}
	}
}

// refreshMarkets refetches the venue's symbol list, rebuilds the currency
// graph and rediscovers the triangular paths.
func (s *MarketScanner) refreshMarkets(ctx context.Context) error {
	symbols, err := s.gateway.FetchMarkets(ctx, s.config.Venue)
	if err != nil {
		return err
	}

	s.graph.Rebuild(symbols)
	paths := s.pathFinder.FindTriangularPaths(s.graph)
	required := RequiredSymbols(paths)

	s.mu.Lock()
	s.paths = paths
	s.symbols = required
	s.mu.Unlock()

	// Symbol universe changed; cached tickers for delisted pairs are junk.
	s.gateway.InvalidateTickers(s.config.Venue)

	s.logger.WithFields(logrus.Fields{
		"venue":   s.config.Venue,
		"symbols": len(symbols),
		"paths":   len(paths),
		"tickers": len(required),
	}).Info("Currency graph rebuilt")
	return nil
}

// scanCycle runs one full detect-score-act iteration. Fetches are fanned out
// and joined before scoring so every path in a snapshot is priced against the
// same cycle's data.
func (s *MarketScanner) scanCycle(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "scanner.scanCycle",
		trace.WithAttributes(attribute.String("venue", s.config.Venue)))
	defer span.End()

	paths := s.currentPaths()
	symbols := s.currentSymbols()
	if len(paths) == 0 {
		return
	}

	start := time.Now()
	tickers := s.gateway.FetchTickers(ctx, s.config.Venue, symbols)
	snapshot := s.scorer.Score(s.config.Venue, paths, tickers, time.Now())

	s.mu.Lock()
	s.lastScan = time.Now()
	s.latest = snapshot
	s.mu.Unlock()

	executable := snapshot.ExecutableCount()
	s.logger.WithFields(logrus.Fields{
		"venue":         s.config.Venue,
		"tickers":       len(tickers),
		"opportunities": len(snapshot.Opportunities),
		"executable":    executable,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	}).Debug("Scan cycle complete")

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
			s.logger.WithError(err).Warn("Snapshot persistence failed")
		}
	}

	best, ok := snapshot.Best()
	if !ok {
		return
	}
	if s.alerts != nil {
		s.alerts.NotifyOpportunity(ctx, best)
	}

	if s.config.PaperTrading {
		return
	}
	s.executeBest(ctx, best)
}

// executeBest hands the cycle's best opportunity to the executor and records
// the attempt. Executor-side protective refusals are expected outcomes, not
// pipeline errors.
func (s *MarketScanner) executeBest(ctx context.Context, opp models.Opportunity) {
	record, err := s.executor.Execute(ctx, opp)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"opportunity_id": opp.ID,
			"outcome":        record.Outcome,
		}).WithError(err).Warn("Execution attempt did not settle")
	}

	if s.executions != nil {
		if saveErr := s.executions.SaveExecution(ctx, record); saveErr != nil {
			s.logger.WithError(saveErr).Warn("Execution persistence failed")
		}
	}
	if s.alerts != nil {
		s.alerts.NotifyExecution(ctx, record)
	}
}

// Latest returns the most recent snapshot, or nil before the first cycle.
func (s *MarketScanner) Latest() *models.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// LastScan reports when the previous cycle completed, for health checks.
func (s *MarketScanner) LastScan() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScan
}

// PathCount reports how many triangular paths the current graph yields.
func (s *MarketScanner) PathCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

func (s *MarketScanner) currentPaths() []models.TriangularPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths
}

func (s *MarketScanner) currentSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbols
}
