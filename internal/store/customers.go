package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const customerColumns = `id, name, email, phone, created_at, deleted_at`

func scanCustomer(row interface{ Scan(...any) error }) (*model.Customer, error) {
	c := &model.Customer{}
	var email, phone sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.CreatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	return c, nil
}

// CreateCustomer creates a new customer.
func CreateCustomer(ctx context.Context, q DBTX, name, email, phone string) (*model.Customer, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO customers (name, email, phone) VALUES (?, ?, ?)`,
		name, nullString(email), nullString(phone),
	)
	if err != nil {
		return nil, fmt.Errorf("creating customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting customer id: %w", err)
	}

	return GetCustomer(ctx, q, id)
}

// GetCustomer returns a customer by ID.
func GetCustomer(ctx context.Context, q DBTX, id int64) (*model.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns all non-deleted customers.
func ListCustomers(ctx context.Context, q DBTX) ([]model.Customer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// UpdateCustomer updates a customer's contact details.
func UpdateCustomer(ctx context.Context, q DBTX, id int64, name, email, phone string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE customers SET name = ?, email = ?, phone = ? WHERE id = ? AND deleted_at IS NULL`,
		name, nullString(email), nullString(phone), id,
	)
	if err != nil {
		return fmt.Errorf("updating customer: %w", err)
	}
	return nil
}

// DeleteCustomer soft-deletes a customer. Fails if the customer still has
// open bookings.
func DeleteCustomer(ctx context.Context, q DBTX, id int64) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE customer_id = ? AND status IN ('pending', 'confirmed', 'active')`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking customer bookings: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete customer: still has %d open bookings", count)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE customers SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting customer: %w", err)
	}
	return nil
}
