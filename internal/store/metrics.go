package store

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

// SaleStats are the raw aggregates behind the sales dashboard.
type SaleStats struct {
	ByStatus            map[model.TransitionStatus]int
	ActiveRevenueImpact decimal.Decimal
	ConflictsSince      int
	ResolutionsSince    int
	RollbacksSince      int
	// CompletionDurations holds created_at to completed_at for every
	// completed transition.
	CompletionDurations []time.Duration
}

// LoadSaleStats aggregates transition activity. The *Since counters cover
// rows stamped at or after since.
func LoadSaleStats(ctx context.Context, q DBTX, since time.Time) (*SaleStats, error) {
	stats := &SaleStats{ByStatus: make(map[model.TransitionStatus]int)}
	since = since.UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT status, revenue_impact, created_at, completed_at FROM sale_transitions`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading transition stats: %w", err)
	}
	for rows.Next() {
		var status model.TransitionStatus
		var revenue decimal.Decimal
		var created time.Time
		var completed *time.Time
		if err := rows.Scan(&status, &revenue, &created, &completed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning transition stats: %w", err)
		}
		stats.ByStatus[status]++
		if status.Active() {
			stats.ActiveRevenueImpact = stats.ActiveRevenueImpact.Add(revenue)
		}
		if status == model.TransitionCompleted && completed != nil {
			stats.CompletionDurations = append(stats.CompletionDurations, completed.Sub(created))
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transition stats: %w", err)
	}

	counters := []struct {
		query string
		args  []any
		dest  *int
	}{
		{`SELECT COUNT(*) FROM sale_conflicts WHERE detected_at >= ?`, []any{since}, &stats.ConflictsSince},
		{`SELECT COUNT(*) FROM sale_resolutions WHERE executed_at >= ? AND execution_status = ?`,
			[]any{since, model.ExecutionExecuted}, &stats.ResolutionsSince},
		{`SELECT COUNT(*) FROM sale_transitions WHERE rolled_back_at >= ?`, []any{since}, &stats.RollbacksSince},
	}
	for _, c := range counters {
		if err := q.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting sale activity: %w", err)
		}
	}

	return stats, nil
}
