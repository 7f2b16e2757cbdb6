package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

const holdSelect = `SELECT h.id, h.item_id, h.reason, h.held_until, h.released_at, h.created_at,
	        i.name AS item_name
	 FROM inventory_holds h
	 JOIN items i ON i.id = h.item_id`

func scanHold(row interface{ Scan(...any) error }) (*model.InventoryHold, error) {
	h := &model.InventoryHold{}
	if err := row.Scan(&h.ID, &h.ItemID, &h.Reason, &h.HeldUntil, &h.ReleasedAt, &h.CreatedAt, &h.ItemName); err != nil {
		return nil, err
	}
	return h, nil
}

func scanHolds(rows *sql.Rows) ([]model.InventoryHold, error) {
	var holds []model.InventoryHold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning hold: %w", err)
		}
		holds = append(holds, *h)
	}
	return holds, rows.Err()
}

// CreateHold places a hold on an item. A nil heldUntil holds it until released.
func CreateHold(ctx context.Context, q DBTX, itemID int64, reason string, heldUntil *time.Time) (*model.InventoryHold, error) {
	var until any
	if heldUntil != nil {
		until = heldUntil.UTC()
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO inventory_holds (item_id, reason, held_until, created_at) VALUES (?, ?, ?, ?)`,
		itemID, reason, until, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hold: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting hold id: %w", err)
	}

	return GetHold(ctx, q, id)
}

// GetHold returns a hold by ID.
func GetHold(ctx context.Context, q DBTX, id int64) (*model.InventoryHold, error) {
	h, err := scanHold(q.QueryRowContext(ctx, holdSelect+` WHERE h.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting hold: %w", err)
	}
	return h, nil
}

// ListHolds returns holds, optionally for one item, unreleased ones only
// when activeOnly is set.
func ListHolds(ctx context.Context, q DBTX, itemID int64, activeOnly bool) ([]model.InventoryHold, error) {
	query := holdSelect + ` WHERE 1=1`
	var args []any

	if itemID > 0 {
		query += ` AND h.item_id = ?`
		args = append(args, itemID)
	}
	if activeOnly {
		query += ` AND h.released_at IS NULL`
	}
	query += ` ORDER BY h.id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing holds: %w", err)
	}
	defer rows.Close()

	return scanHolds(rows)
}

// ReleaseHold marks a hold released at at. The returned flag is false when
// the hold exists but was already released.
func ReleaseHold(ctx context.Context, q DBTX, id int64, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_holds SET released_at = ? WHERE id = ? AND released_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("releasing hold: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking hold release: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	h, err := GetHold(ctx, q, id)
	if err != nil {
		return false, err
	}
	if h == nil {
		return false, fmt.Errorf("hold %d: %w", id, sql.ErrNoRows)
	}
	return false, nil
}

// ReopenHold clears a hold's release. The returned flag reports whether the
// hold had been released.
func ReopenHold(ctx context.Context, q DBTX, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_holds SET released_at = NULL WHERE id = ? AND released_at IS NOT NULL`, id,
	)
	if err != nil {
		return false, fmt.Errorf("reopening hold: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking hold reopen: %w", err)
	}
	return n > 0, nil
}
