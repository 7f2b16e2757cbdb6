package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

// ItemInput holds the editable fields of an item.
type ItemInput struct {
	Name        string
	Description string
	Status      string
	DailyRate   decimal.Decimal
	IsRentable  bool
}

// ItemFilter narrows ListItems. Zero values match everything.
type ItemFilter struct {
	Status   string
	Saleable *bool
}

const itemColumns = `id, name, description, status, daily_rate, is_rentable, is_saleable,
	sale_status, sale_price, listed_at, created_at, updated_at, deleted_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var description, saleStatus sql.NullString
	err := row.Scan(&item.ID, &item.Name, &description, &item.Status, &item.DailyRate,
		&item.IsRentable, &item.IsSaleable, &saleStatus, &item.SalePrice, &item.ListedAt,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.SaleStatus = saleStatus.String
	return item, nil
}

// CreateItem creates a new item.
func CreateItem(ctx context.Context, q DBTX, in ItemInput) (*model.Item, error) {
	status := in.Status
	if status == "" {
		status = model.ItemStatusActive
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (name, description, status, daily_rate, is_rentable) VALUES (?, ?, ?, ?, ?)`,
		in.Name, nullString(in.Description), status, in.DailyRate, in.IsRentable,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, including soft-deleted items.
func GetItem(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all non-deleted items matching filter.
func ListItems(ctx context.Context, q DBTX, filter ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE deleted_at IS NULL`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Saleable != nil {
		query += ` AND is_saleable = ?`
		args = append(args, *filter.Saleable)
	}
	query += ` ORDER BY name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem updates an item's catalogue fields. Sale fields are only
// changed through sale transitions.
func UpdateItem(ctx context.Context, q DBTX, id int64, in ItemInput) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, status = ?, daily_rate = ?, is_rentable = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		in.Name, nullString(in.Description), in.Status, in.DailyRate, in.IsRentable, now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, q DBTX, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// ListItemForSale flips an item from rentable to saleable and lists it at
// listedAt. A valid price replaces the stored sale price.
func ListItemForSale(ctx context.Context, q DBTX, id int64, price decimal.NullDecimal, listedAt time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET is_saleable = 1, is_rentable = 0, sale_status = ?,
		        sale_price = COALESCE(?, sale_price), listed_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		model.SaleStatusListed, price, listedAt.UTC(), now(), id,
	)
	if err != nil {
		return fmt.Errorf("listing item for sale: %w", err)
	}
	return expectOneRow(result, "item", id)
}

// RestoreItemFlags writes back previously captured sale-related fields.
func RestoreItemFlags(ctx context.Context, q DBTX, id int64, flags model.ItemFlags) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET is_rentable = ?, is_saleable = ?, sale_status = ?, sale_price = ?,
		        listed_at = ?, updated_at = ?
		 WHERE id = ?`,
		flags.IsRentable, flags.IsSaleable, nullString(flags.SaleStatus), flags.SalePrice,
		flags.ListedAt, now(), id,
	)
	if err != nil {
		return fmt.Errorf("restoring item flags: %w", err)
	}
	return expectOneRow(result, "item", id)
}

func expectOneRow(result sql.Result, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s update: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, sql.ErrNoRows)
	}
	return nil
}
