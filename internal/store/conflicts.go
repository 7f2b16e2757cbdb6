package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

const conflictColumns = `id, transition_id, conflict_type, entity_type, entity_id, severity, description,
	customer_id, financial_impact, resolved, resolved_at, resolution_action, detected_at`

func scanConflict(row interface{ Scan(...any) error }) (*model.Conflict, error) {
	c := &model.Conflict{}
	var action sql.NullString
	err := row.Scan(&c.ID, &c.TransitionID, &c.Type, &c.EntityType, &c.EntityID, &c.Severity, &c.Description,
		&c.CustomerID, &c.FinancialImpact, &c.Resolved, &c.ResolvedAt, &action, &c.DetectedAt)
	if err != nil {
		return nil, err
	}
	c.ResolutionAction = model.ResolutionAction(action.String)
	return c, nil
}

// CreateConflict inserts c for its transition and sets its ID.
func CreateConflict(ctx context.Context, q DBTX, c *model.Conflict) error {
	result, err := q.ExecContext(ctx,
		`INSERT INTO sale_conflicts (transition_id, conflict_type, entity_type, entity_id, severity,
		        description, customer_id, financial_impact, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TransitionID, c.Type, c.EntityType, c.EntityID, c.Severity,
		c.Description, c.CustomerID, c.FinancialImpact, c.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating conflict: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting conflict id: %w", err)
	}
	c.ID = id
	return nil
}

// GetConflict returns a conflict by ID.
func GetConflict(ctx context.Context, q DBTX, id int64) (*model.Conflict, error) {
	c, err := scanConflict(q.QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM sale_conflicts WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conflict: %w", err)
	}
	return c, nil
}

// ListConflicts returns a transition's conflicts in detection order.
func ListConflicts(ctx context.Context, q DBTX, transitionID int64) ([]model.Conflict, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+conflictColumns+` FROM sale_conflicts WHERE transition_id = ? ORDER BY id`, transitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []model.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		conflicts = append(conflicts, *c)
	}
	return conflicts, rows.Err()
}

// ResolveConflict marks a conflict resolved with action.
func ResolveConflict(ctx context.Context, q DBTX, id int64, action model.ResolutionAction, at time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE sale_conflicts SET resolved = 1, resolved_at = ?, resolution_action = ?
		 WHERE id = ? AND resolved = 0`,
		at.UTC(), action, id,
	)
	if err != nil {
		return fmt.Errorf("resolving conflict: %w", err)
	}
	return expectOneRow(result, "unresolved conflict", id)
}

// CountConflicts returns how many conflicts a transition has and how many
// of them are resolved.
func CountConflicts(ctx context.Context, q DBTX, transitionID int64) (total, resolved int, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(resolved), 0) FROM sale_conflicts WHERE transition_id = ?`, transitionID,
	).Scan(&total, &resolved)
	if err != nil {
		return 0, 0, fmt.Errorf("counting conflicts: %w", err)
	}
	return total, resolved, nil
}
