package sale

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testNow is the fixed clock every sale test runs at.
var testNow = time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2026, 11, d, 10, 0, 0, 0, time.UTC)
}

type fixture struct {
	db      *sql.DB
	svc     *Service
	admin   model.Actor
	manager model.Actor
	staff   model.Actor
	viewer  model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)

	svc := NewService(database, DefaultPolicy())
	svc.Now = func() time.Time { return testNow }

	return &fixture{
		db:      database,
		svc:     svc,
		admin:   mustActor(t, database, "ana", model.RoleAdmin),
		manager: mustActor(t, database, "marko", model.RoleManager),
		staff:   mustActor(t, database, "sara", model.RoleStaff),
		viewer:  mustActor(t, database, "vid", model.RoleViewer),
	}
}

func mustActor(t *testing.T, database *sql.DB, username, role string) model.Actor {
	t.Helper()
	u, err := store.CreateUser(context.Background(), database, username, "hash", role)
	require.NoError(t, err)
	return model.Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (f *fixture) item(t *testing.T, name string) *model.Item {
	t.Helper()
	item, err := store.CreateItem(context.Background(), f.db, store.ItemInput{
		Name: name, DailyRate: decimal.NewFromInt(25), IsRentable: true,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) customer(t *testing.T, name string) *model.Customer {
	t.Helper()
	c, err := store.CreateCustomer(context.Background(), f.db, name, "customer@example.com", "")
	require.NoError(t, err)
	return c
}

// booking creates a booking of days days starting at start and moves it to
// status.
func (f *fixture) booking(t *testing.T, itemID, customerID int64, start time.Time, days int, status string) *model.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := store.CreateBooking(ctx, f.db, itemID, customerID,
		start, start.AddDate(0, 0, days), decimal.NewFromInt(int64(25*days)))
	require.NoError(t, err)
	if status != model.BookingStatusPending {
		require.NoError(t, store.SetBookingStatus(ctx, f.db, b.ID, status))
	}
	b, err = store.GetBooking(ctx, f.db, b.ID)
	require.NoError(t, err)
	return b
}
