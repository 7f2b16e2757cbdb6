package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

// CreateResolution records how a conflict was handled and sets r's ID.
// Each conflict has at most one resolution.
func CreateResolution(ctx context.Context, q DBTX, r *model.Resolution) error {
	result, err := q.ExecContext(ctx,
		`INSERT INTO sale_resolutions (conflict_id, action_taken, executed_by, execution_status, notes, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ConflictID, r.ActionTaken, r.ExecutedBy, r.ExecutionStatus, nullString(r.Notes), r.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating resolution: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting resolution id: %w", err)
	}
	r.ID = id
	return nil
}

// ListResolutions returns the resolutions of a transition's conflicts keyed
// by conflict ID.
func ListResolutions(ctx context.Context, q DBTX, transitionID int64) (map[int64]model.Resolution, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.id, r.conflict_id, r.action_taken, r.executed_by, r.execution_status, r.notes, r.executed_at
		 FROM sale_resolutions r
		 JOIN sale_conflicts c ON c.id = r.conflict_id
		 WHERE c.transition_id = ?
		 ORDER BY r.id`, transitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing resolutions: %w", err)
	}
	defer rows.Close()

	resolutions := make(map[int64]model.Resolution)
	for rows.Next() {
		var r model.Resolution
		var notes sql.NullString
		if err := rows.Scan(&r.ID, &r.ConflictID, &r.ActionTaken, &r.ExecutedBy, &r.ExecutionStatus, &notes, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scanning resolution: %w", err)
		}
		r.Notes = notes.String
		resolutions[r.ConflictID] = r
	}
	return resolutions, rows.Err()
}

// ListResolvedEntities returns the IDs of the entities a transition's
// executed resolutions applied action to.
func ListResolvedEntities(ctx context.Context, q DBTX, transitionID int64, action model.ResolutionAction) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT c.entity_id
		 FROM sale_resolutions r
		 JOIN sale_conflicts c ON c.id = r.conflict_id
		 WHERE c.transition_id = ? AND r.action_taken = ? AND r.execution_status = ?`,
		transitionID, action, model.ExecutionExecuted,
	)
	if err != nil {
		return nil, fmt.Errorf("listing resolved entities: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning resolved entity: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
