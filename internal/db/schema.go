package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Money columns hold decimal strings.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'manager', 'staff', 'viewer')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'damaged', 'lost', 'retired')),
    daily_rate  TEXT NOT NULL DEFAULT '0',
    is_rentable INTEGER NOT NULL DEFAULT 1,
    is_saleable INTEGER NOT NULL DEFAULT 0,
    sale_status TEXT CHECK (sale_status IN ('listed')),
    sale_price  TEXT,
    listed_at   DATETIME,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at  DATETIME
);

CREATE TABLE IF NOT EXISTS customers (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT,
    phone      TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS bookings (
    id                  INTEGER PRIMARY KEY,
    item_id             INTEGER NOT NULL REFERENCES items(id),
    customer_id         INTEGER NOT NULL REFERENCES customers(id),
    start_date          DATETIME NOT NULL,
    end_date            DATETIME NOT NULL,
    status              TEXT NOT NULL DEFAULT 'pending'
                        CHECK (status IN ('pending', 'confirmed', 'active', 'completed', 'cancelled')),
    total_amount        TEXT NOT NULL DEFAULT '0',
    cancellation_reason TEXT,
    cancelled_at        DATETIME,
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bookings_item_status ON bookings(item_id, status);

CREATE TABLE IF NOT EXISTS inventory_holds (
    id          INTEGER PRIMARY KEY,
    item_id     INTEGER NOT NULL REFERENCES items(id),
    reason      TEXT NOT NULL,
    held_until  DATETIME,
    released_at DATETIME,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sale_transitions (
    id                INTEGER PRIMARY KEY,
    item_id           INTEGER NOT NULL REFERENCES items(id),
    requested_by      INTEGER NOT NULL REFERENCES users(id),
    sale_price        TEXT,
    effective_date    DATETIME NOT NULL,
    status            TEXT NOT NULL DEFAULT 'pending'
                      CHECK (status IN ('pending', 'awaiting_approval', 'approved', 'processing',
                                        'completed', 'rejected', 'failed', 'rolled_back')),
    conflict_summary  TEXT,
    revenue_impact    TEXT NOT NULL DEFAULT '0',
    approval_required INTEGER NOT NULL DEFAULT 0,
    approved_by       INTEGER REFERENCES users(id),
    approval_date     DATETIME,
    approval_notes    TEXT,
    rejection_reason  TEXT,
    failure_reason    TEXT,
    notes             TEXT,
    completed_at      DATETIME,
    rolled_back_at    DATETIME,
    created_at        DATETIME NOT NULL,
    updated_at        DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sale_transitions_item_active
    ON sale_transitions(item_id)
    WHERE status IN ('pending', 'awaiting_approval', 'approved', 'processing');

CREATE TABLE IF NOT EXISTS sale_conflicts (
    id                INTEGER PRIMARY KEY,
    transition_id     INTEGER NOT NULL REFERENCES sale_transitions(id),
    conflict_type     TEXT NOT NULL
                      CHECK (conflict_type IN ('future_booking', 'pending_booking', 'active_rental', 'inventory_hold')),
    entity_type       TEXT NOT NULL CHECK (entity_type IN ('booking', 'hold')),
    entity_id         INTEGER NOT NULL,
    severity          TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
    description       TEXT NOT NULL,
    customer_id       INTEGER REFERENCES customers(id),
    financial_impact  TEXT NOT NULL DEFAULT '0',
    resolved          INTEGER NOT NULL DEFAULT 0,
    resolved_at       DATETIME,
    resolution_action TEXT
                      CHECK (resolution_action IN ('cancel_booking', 'wait_for_return', 'offer_alternative', 'release_hold')),
    detected_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sale_conflicts_transition ON sale_conflicts(transition_id);

CREATE TABLE IF NOT EXISTS sale_resolutions (
    id               INTEGER PRIMARY KEY,
    conflict_id      INTEGER NOT NULL UNIQUE REFERENCES sale_conflicts(id),
    action_taken     TEXT NOT NULL,
    executed_by      INTEGER REFERENCES users(id),
    execution_status TEXT NOT NULL CHECK (execution_status IN ('executed', 'skipped', 'failed')),
    notes            TEXT,
    executed_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sale_checkpoints (
    id              INTEGER PRIMARY KEY,
    transition_id   INTEGER NOT NULL UNIQUE REFERENCES sale_transitions(id),
    checkpoint_data BLOB NOT NULL,
    used            INTEGER NOT NULL DEFAULT 0,
    used_at         DATETIME,
    created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sale_notifications (
    id                INTEGER PRIMARY KEY,
    transition_id     INTEGER NOT NULL REFERENCES sale_transitions(id),
    conflict_id       INTEGER REFERENCES sale_conflicts(id),
    customer_id       INTEGER NOT NULL REFERENCES customers(id),
    kind              TEXT NOT NULL CHECK (kind IN ('conflict_resolution', 'rollback')),
    message           TEXT NOT NULL,
    delivery_ref      TEXT NOT NULL UNIQUE,
    delivery_status   TEXT NOT NULL DEFAULT 'queued' CHECK (delivery_status IN ('queued', 'sent', 'failed')),
    attempts          INTEGER NOT NULL DEFAULT 0,
    last_error        TEXT,
    sent_at           DATETIME,
    customer_response TEXT CHECK (customer_response IN ('accept', 'reject', 'request_alternative')),
    responded_at      DATETIME,
    created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sale_notifications_delivery ON sale_notifications(delivery_status);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
