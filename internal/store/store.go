// Package store holds the SQL access functions. Every function takes the
// database handle explicitly so callers can run it inside a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	// ErrActiveTransitionExists is returned when an item already has a
	// non-terminal sale transition.
	ErrActiveTransitionExists = errors.New("item already has an active sale transition")

	// ErrUsernameTaken is returned when an active user already has the username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrSlotTaken is returned when a booking would overlap another open booking.
	ErrSlotTaken = errors.New("item is already booked for that period")

	// ErrSaleInProgress is returned when a booking is made for an item that
	// is being converted to sale.
	ErrSaleInProgress = errors.New("item is being converted to sale")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// now is the timestamp written by store functions that stamp rows themselves.
func now() time.Time {
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
