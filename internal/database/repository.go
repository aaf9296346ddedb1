package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Repository persists market snapshots and execution records.
type Repository struct {
	pool DatabasePool
}

// NewRepository creates a repository backed by the given pool.
func NewRepository(pool DatabasePool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot stores one scan cycle's snapshot. Opportunities are stored as
// a JSONB document; only the aggregate columns are queryable.
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error {
	opportunities, err := json.Marshal(snapshot.Opportunities)
	if err != nil {
		return fmt.Errorf("failed to marshal opportunities: %w", err)
	}

	query := `
		INSERT INTO market_snapshots (id, venue, captured_at, pair_count, opportunity_count, executable_count, opportunities)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		snapshot.ID,
		snapshot.Venue,
		snapshot.Timestamp,
		len(snapshot.Pairs),
		len(snapshot.Opportunities),
		snapshot.ExecutableCount(),
		opportunities,
	)
	if err != nil {
		return fmt.Errorf("failed to insert market snapshot: %w", err)
	}
	return nil
}

// SaveExecution stores one finalized execution record with its legs as JSONB.
func (r *Repository) SaveExecution(ctx context.Context, record *models.ExecutionRecord) error {
	legs, err := json.Marshal(record.Legs)
	if err != nil {
		return fmt.Errorf("failed to marshal execution legs: %w", err)
	}

	query := `
		INSERT INTO execution_records (
			id, opportunity_id, venue, path, state, outcome, legs,
			start_amount, final_amount, expected_profit, realized_profit,
			total_slippage, error, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.pool.Exec(ctx, query,
		record.ID,
		record.OpportunityID,
		record.Venue,
		record.Path,
		record.State,
		record.Outcome,
		legs,
		record.StartAmount,
		record.FinalAmount,
		record.ExpectedProfit,
		record.RealizedProfit,
		record.TotalSlippage,
		record.Error,
		record.StartedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution record: %w", err)
	}
	return nil
}

// RecentExecutions returns the latest execution records, newest first.
func (r *Repository) RecentExecutions(ctx context.Context, limit int) ([]models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, opportunity_id, venue, path, state, outcome, legs,
		       start_amount, final_amount, expected_profit, realized_profit,
		       total_slippage, error, started_at, completed_at
		FROM execution_records
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		var (
			record models.ExecutionRecord
			legs   []byte
		)
		err := rows.Scan(
			&record.ID,
			&record.OpportunityID,
			&record.Venue,
			&record.Path,
			&record.State,
			&record.Outcome,
			&legs,
			&record.StartAmount,
			&record.FinalAmount,
			&record.ExpectedProfit,
			&record.RealizedProfit,
			&record.TotalSlippage,
			&record.Error,
			&record.StartedAt,
			&record.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		if len(legs) > 0 {
			if err := json.Unmarshal(legs, &record.Legs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal execution legs: %w", err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ProfitSince aggregates realized profit over settled executions after the
// given time.
func (r *Repository) ProfitSince(ctx context.Context, since time.Time) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(SUM(realized_profit), 0), COUNT(*)
		FROM execution_records
		WHERE outcome = 'success' AND completed_at >= $1
	`
	var (
		profit decimal.Decimal
		count  int
	)
	if err := r.pool.QueryRow(ctx, query, since).Scan(&profit, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to aggregate profit: %w", err)
	}
	return profit, count, nil
}

// PruneSnapshots deletes snapshots captured before the cutoff and returns how
// many rows were removed.
func (r *Repository) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM market_snapshots WHERE captured_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
