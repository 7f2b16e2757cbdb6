package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

// BookingFilter narrows ListBookings. Zero values match everything.
type BookingFilter struct {
	ItemID     int64
	CustomerID int64
	Status     string
}

const bookingSelect = `SELECT b.id, b.item_id, b.customer_id, b.start_date, b.end_date, b.status,
	        b.total_amount, b.cancellation_reason, b.cancelled_at, b.created_at, b.updated_at,
	        i.name AS item_name, c.name AS customer_name, c.email AS customer_email
	 FROM bookings b
	 JOIN items i ON i.id = b.item_id
	 JOIN customers c ON c.id = b.customer_id`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	b := &model.Booking{}
	var reason, email sql.NullString
	err := row.Scan(&b.ID, &b.ItemID, &b.CustomerID, &b.StartDate, &b.EndDate, &b.Status,
		&b.TotalAmount, &reason, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
		&b.ItemName, &b.CustomerName, &email)
	if err != nil {
		return nil, err
	}
	b.CancellationReason = reason.String
	b.CustomerEmail = email.String
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CreateBooking reserves an item for [start, end) in a single transaction.
// Returns ErrSlotTaken if another open booking overlaps the range and
// ErrSaleInProgress while the item has an active sale transition.
func CreateBooking(ctx context.Context, db *sql.DB, itemID, customerID int64, start, end time.Time, total decimal.Decimal) (*model.Booking, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("booking must end after it starts")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Take the write lock before reading so the overlap check holds.
	if _, err := tx.ExecContext(ctx, `UPDATE items SET updated_at = updated_at WHERE id = ?`, itemID); err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}

	active, err := GetActiveTransition(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrSaleInProgress
	}

	taken, err := BookingSlotTaken(ctx, tx, itemID, 0, start, end)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	ts := now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (item_id, customer_id, start_date, end_date, status, total_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, customerID, start.UTC(), end.UTC(), model.BookingStatusPending, total, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing booking: %w", err)
	}

	id, _ := result.LastInsertId()
	return GetBooking(ctx, db, id)
}

// GetBooking returns a booking by ID with item and customer names joined.
func GetBooking(ctx context.Context, q DBTX, id int64) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings matching filter, newest start first.
func ListBookings(ctx context.Context, q DBTX, filter BookingFilter) ([]model.Booking, error) {
	query := bookingSelect + ` WHERE 1=1`
	var args []any

	if filter.ItemID > 0 {
		query += ` AND b.item_id = ?`
		args = append(args, filter.ItemID)
	}
	if filter.CustomerID > 0 {
		query += ` AND b.customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	if filter.Status != "" {
		query += ` AND b.status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY b.start_date DESC, b.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// ListOpenBookings returns the item's pending, confirmed and active bookings
// in id order.
func ListOpenBookings(ctx context.Context, q DBTX, itemID int64) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx,
		bookingSelect+` WHERE b.item_id = ? AND b.status IN ('pending', 'confirmed', 'active')
		 ORDER BY b.id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing open bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// BookingSlotTaken reports whether an open booking of the item other than
// excludeID overlaps [start, end).
func BookingSlotTaken(ctx context.Context, q DBTX, itemID, excludeID int64, start, end time.Time) (bool, error) {
	open, err := ListOpenBookings(ctx, q, itemID)
	if err != nil {
		return false, err
	}
	for _, b := range open {
		if b.ID != excludeID && b.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

// SetBookingStatus moves a booking to status without further checks.
func SetBookingStatus(ctx context.Context, q DBTX, id int64, status string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}
	return expectOneRow(result, "booking", id)
}

// CancelBooking cancels an open booking, stamping reason and time. The
// returned flag is false when the booking exists but is no longer open.
func CancelBooking(ctx context.Context, q DBTX, id int64, reason string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancellation_reason = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		model.BookingStatusCancelled, reason, at.UTC(), now(), id,
		model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("cancelling booking: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking booking cancellation: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	b, err := GetBooking(ctx, q, id)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, fmt.Errorf("booking %d: %w", id, sql.ErrNoRows)
	}
	return false, nil
}

// ReactivateBooking restores a cancelled booking to status and clears its
// cancellation. Bookings that are not cancelled are left alone; the returned
// flag reports whether the row changed.
func ReactivateBooking(ctx context.Context, q DBTX, id int64, status string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancellation_reason = NULL, cancelled_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, now(), id, model.BookingStatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("reactivating booking: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking booking reactivation: %w", err)
	}
	return n > 0, nil
}
