package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: bookings are looked up by customer when notifying.
	`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id)`,
	// Migration 2: transition listings filter by status and approval flag.
	`CREATE INDEX IF NOT EXISTS idx_sale_transitions_status
	     ON sale_transitions(status, approval_required)`,
}

// Migrate ensures the schema and then runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
