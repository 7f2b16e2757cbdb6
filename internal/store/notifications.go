package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/oklog/ulid/v2"
)

const notificationSelect = `SELECT n.id, n.transition_id, n.conflict_id, n.customer_id, n.kind, n.message,
	        n.delivery_ref, n.delivery_status, n.attempts, n.last_error, n.sent_at,
	        n.customer_response, n.responded_at, n.created_at,
	        c.name AS customer_name, c.email AS customer_email
	 FROM sale_notifications n
	 JOIN customers c ON c.id = n.customer_id`

func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	n := &model.Notification{}
	var lastError, response, email sql.NullString
	err := row.Scan(&n.ID, &n.TransitionID, &n.ConflictID, &n.CustomerID, &n.Kind, &n.Message,
		&n.DeliveryRef, &n.DeliveryStatus, &n.Attempts, &lastError, &n.SentAt,
		&response, &n.RespondedAt, &n.CreatedAt,
		&n.CustomerName, &email)
	if err != nil {
		return nil, err
	}
	n.LastError = lastError.String
	n.CustomerResponse = model.CustomerResponse(response.String)
	n.CustomerEmail = email.String
	return n, nil
}

func scanNotifications(rows *sql.Rows) ([]model.Notification, error) {
	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// CreateNotification queues n for delivery, assigning its ID and a ULID
// delivery reference.
func CreateNotification(ctx context.Context, q DBTX, n *model.Notification) error {
	ts := now()
	n.DeliveryRef = ulid.Make().String()
	n.DeliveryStatus = model.DeliveryQueued
	n.CreatedAt = ts

	result, err := q.ExecContext(ctx,
		`INSERT INTO sale_notifications (transition_id, conflict_id, customer_id, kind, message,
		        delivery_ref, delivery_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.TransitionID, n.ConflictID, n.CustomerID, n.Kind, n.Message,
		n.DeliveryRef, n.DeliveryStatus, ts,
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting notification id: %w", err)
	}
	n.ID = id
	return nil
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, q DBTX, id int64) (*model.Notification, error) {
	n, err := scanNotification(q.QueryRowContext(ctx, notificationSelect+` WHERE n.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a transition's notifications in creation order.
func ListNotifications(ctx context.Context, q DBTX, transitionID int64) ([]model.Notification, error) {
	rows, err := q.QueryContext(ctx,
		notificationSelect+` WHERE n.transition_id = ? ORDER BY n.id`, transitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// ListQueuedNotifications returns up to limit notifications awaiting delivery,
// oldest first.
func ListQueuedNotifications(ctx context.Context, q DBTX, limit int) ([]model.Notification, error) {
	rows, err := q.QueryContext(ctx,
		notificationSelect+` WHERE n.delivery_status = ? ORDER BY n.id LIMIT ?`,
		model.DeliveryQueued, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing queued notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// MarkNotificationSent records a successful delivery.
func MarkNotificationSent(ctx context.Context, q DBTX, id int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sale_notifications SET delivery_status = ?, attempts = attempts + 1, last_error = NULL, sent_at = ?
		 WHERE id = ?`,
		model.DeliverySent, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking notification sent: %w", err)
	}
	return nil
}

// MarkNotificationAttemptFailed records a failed delivery. The notification
// stays queued until maxAttempts attempts have failed.
func MarkNotificationAttemptFailed(ctx context.Context, q DBTX, id int64, deliveryErr string, maxAttempts int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sale_notifications
		 SET attempts = attempts + 1,
		     last_error = ?,
		     delivery_status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END
		 WHERE id = ?`,
		deliveryErr, maxAttempts, model.DeliveryFailed, model.DeliveryQueued, id,
	)
	if err != nil {
		return fmt.Errorf("marking notification failed: %w", err)
	}
	return nil
}

// SetNotificationResponse records a customer's response. The returned flag
// is false when the notification had already been answered.
func SetNotificationResponse(ctx context.Context, q DBTX, id int64, response model.CustomerResponse, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE sale_notifications SET customer_response = ?, responded_at = ?
		 WHERE id = ? AND customer_response IS NULL`,
		response, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("recording notification response: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking notification response: %w", err)
	}
	return n > 0, nil
}
