package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

func mustItem(t *testing.T, database *sql.DB, name string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, ItemInput{
		Name: name, DailyRate: decimal.RequireFromString("25.00"), IsRentable: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return item
}

func mustCustomer(t *testing.T, database *sql.DB, name string) *model.Customer {
	t.Helper()
	c, err := CreateCustomer(context.Background(), database, name, name+"@example.com", "")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	return c
}

func mustUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, username, "hash", role)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustBooking(t *testing.T, database *sql.DB, itemID, customerID int64, start time.Time, days int) *model.Booking {
	t.Helper()
	b, err := CreateBooking(context.Background(), database, itemID, customerID,
		start, start.AddDate(0, 0, days), decimal.NewFromInt(int64(25*days)))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func day(d int) time.Time {
	return time.Date(2026, 11, d, 10, 0, 0, 0, time.UTC)
}
