package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// ErrStaleTransition is returned when a transition is no longer in the
// status an update expected.
var ErrStaleTransition = errors.New("transition status changed concurrently")

// TransitionFilter narrows ListTransitions. Zero values match everything.
type TransitionFilter struct {
	Status           model.TransitionStatus
	ItemID           int64
	ApprovalRequired *bool
	Limit            int
	Offset           int
}

// TransitionChange is a status move plus the fields it stamps. Nil fields
// are left unchanged.
type TransitionChange struct {
	Status          model.TransitionStatus
	ApprovedBy      *int64
	ApprovalDate    *time.Time
	ApprovalNotes   *string
	RejectionReason *string
	FailureReason   *string
	CompletedAt     *time.Time
	RolledBackAt    *time.Time
}

const transitionSelect = `SELECT t.id, t.item_id, t.requested_by, t.sale_price, t.effective_date, t.status,
	        t.conflict_summary, t.revenue_impact, t.approval_required, t.approved_by, t.approval_date,
	        t.approval_notes, t.rejection_reason, t.failure_reason, t.notes, t.completed_at,
	        t.rolled_back_at, t.created_at, t.updated_at, i.name AS item_name
	 FROM sale_transitions t
	 JOIN items i ON i.id = t.item_id`

func scanTransition(row interface{ Scan(...any) error }) (*model.Transition, error) {
	t := &model.Transition{}
	var summary, approvalNotes, rejection, failure, notes sql.NullString
	err := row.Scan(&t.ID, &t.ItemID, &t.RequestedBy, &t.SalePrice, &t.EffectiveDate, &t.Status,
		&summary, &t.RevenueImpact, &t.ApprovalRequired, &t.ApprovedBy, &t.ApprovalDate,
		&approvalNotes, &rejection, &failure, &notes, &t.CompletedAt,
		&t.RolledBackAt, &t.CreatedAt, &t.UpdatedAt, &t.ItemName)
	if err != nil {
		return nil, err
	}
	if summary.Valid && summary.String != "" {
		t.ConflictSummary = &model.ConflictSummary{}
		if err := json.Unmarshal([]byte(summary.String), t.ConflictSummary); err != nil {
			return nil, fmt.Errorf("decoding conflict summary of transition %d: %w", t.ID, err)
		}
	}
	t.ApprovalNotes = approvalNotes.String
	t.RejectionReason = rejection.String
	t.FailureReason = failure.String
	t.Notes = notes.String
	return t, nil
}

func encodeSummary(s *model.ConflictSummary) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding conflict summary: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateTransition inserts t and sets its ID and timestamps. Returns
// ErrActiveTransitionExists when the item already has a non-terminal transition.
func CreateTransition(ctx context.Context, q DBTX, t *model.Transition) error {
	summary, err := encodeSummary(t.ConflictSummary)
	if err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = model.TransitionPending
	}
	ts := now()

	result, err := q.ExecContext(ctx,
		`INSERT INTO sale_transitions (item_id, requested_by, sale_price, effective_date, status,
		        conflict_summary, revenue_impact, approval_required, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ItemID, t.RequestedBy, t.SalePrice, t.EffectiveDate.UTC(), t.Status,
		summary, t.RevenueImpact, t.ApprovalRequired, nullString(t.Notes), ts, ts,
	)
	if isUniqueViolation(err) {
		return ErrActiveTransitionExists
	}
	if err != nil {
		return fmt.Errorf("creating transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting transition id: %w", err)
	}
	t.ID = id
	t.CreatedAt = ts
	t.UpdatedAt = ts
	return nil
}

// GetTransition returns a transition by ID.
func GetTransition(ctx context.Context, q DBTX, id int64) (*model.Transition, error) {
	t, err := scanTransition(q.QueryRowContext(ctx, transitionSelect+` WHERE t.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transition: %w", err)
	}
	return t, nil
}

// GetActiveTransition returns the item's non-terminal transition, if any.
func GetActiveTransition(ctx context.Context, q DBTX, itemID int64) (*model.Transition, error) {
	t, err := scanTransition(q.QueryRowContext(ctx,
		transitionSelect+` WHERE t.item_id = ?
		 AND t.status IN ('pending', 'awaiting_approval', 'approved', 'processing')`, itemID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active transition: %w", err)
	}
	return t, nil
}

// ListTransitions returns one page of transitions matching filter, newest
// first, and the total number of matches.
func ListTransitions(ctx context.Context, q DBTX, filter TransitionFilter) ([]model.Transition, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		where += ` AND t.status = ?`
		args = append(args, filter.Status)
	}
	if filter.ItemID > 0 {
		where += ` AND t.item_id = ?`
		args = append(args, filter.ItemID)
	}
	if filter.ApprovalRequired != nil {
		where += ` AND t.approval_required = ?`
		args = append(args, *filter.ApprovalRequired)
	}

	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sale_transitions t`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting transitions: %w", err)
	}

	query := transitionSelect + where + ` ORDER BY t.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing transitions: %w", err)
	}
	defer rows.Close()

	var transitions []model.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning transition: %w", err)
		}
		transitions = append(transitions, *t)
	}
	return transitions, total, rows.Err()
}

// SetTransitionAssessment stores the detection outcome on a transition.
func SetTransitionAssessment(ctx context.Context, q DBTX, id int64, summary *model.ConflictSummary, approvalRequired bool) error {
	encoded, err := encodeSummary(summary)
	if err != nil {
		return err
	}
	revenue := "0"
	if summary != nil {
		revenue = summary.RevenueImpact.String()
	}
	_, err = q.ExecContext(ctx,
		`UPDATE sale_transitions SET conflict_summary = ?, revenue_impact = ?, approval_required = ?, updated_at = ?
		 WHERE id = ?`,
		encoded, revenue, approvalRequired, now(), id,
	)
	if err != nil {
		return fmt.Errorf("storing transition assessment: %w", err)
	}
	return nil
}

// UpdateTransition applies change to a transition currently in status from.
// Returns ErrStaleTransition if the transition has moved on.
func UpdateTransition(ctx context.Context, q DBTX, id int64, from model.TransitionStatus, change TransitionChange) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{change.Status, now()}

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if change.ApprovedBy != nil {
		add("approved_by", *change.ApprovedBy)
	}
	if change.ApprovalDate != nil {
		add("approval_date", change.ApprovalDate.UTC())
	}
	if change.ApprovalNotes != nil {
		add("approval_notes", nullString(*change.ApprovalNotes))
	}
	if change.RejectionReason != nil {
		add("rejection_reason", *change.RejectionReason)
	}
	if change.FailureReason != nil {
		add("failure_reason", *change.FailureReason)
	}
	if change.CompletedAt != nil {
		add("completed_at", change.CompletedAt.UTC())
	}
	if change.RolledBackAt != nil {
		add("rolled_back_at", change.RolledBackAt.UTC())
	}
	args = append(args, id, from)

	result, err := q.ExecContext(ctx,
		`UPDATE sale_transitions SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating transition: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking transition update: %w", err)
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}
