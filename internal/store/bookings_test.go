package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

func TestCreateBooking(t *testing.T) {
	database := db.NewTestDB(t)

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")

	b := mustBooking(t, database, item.ID, c.ID, day(10), 3)
	if b.Status != model.BookingStatusPending {
		t.Errorf("expected pending booking, got %q", b.Status)
	}
	if b.ItemName != "Drill" || b.CustomerName != "Ana" || b.CustomerEmail != "Ana@example.com" {
		t.Errorf("expected joined names, got %+v", b)
	}
	if !b.StartDate.Equal(day(10)) || !b.EndDate.Equal(day(13)) {
		t.Errorf("unexpected dates %v - %v", b.StartDate, b.EndDate)
	}
	if !b.TotalAmount.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected total 75, got %s", b.TotalAmount)
	}
}

func TestCreateBookingOverlapRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")
	mustBooking(t, database, item.ID, c.ID, day(10), 3)

	_, err := CreateBooking(ctx, database, item.ID, c.ID, day(12), day(14), decimal.Zero)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Back to back is fine.
	if _, err := CreateBooking(ctx, database, item.ID, c.ID, day(13), day(14), decimal.Zero); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
}

func TestCreateBookingDuringSale(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")
	user := mustUser(t, database, "staff", model.RoleStaff)
	tr := mustTransition(t, database, item.ID, user.ID)

	_, err := CreateBooking(ctx, database, item.ID, c.ID, day(10), day(12), decimal.Zero)
	if !errors.Is(err, ErrSaleInProgress) {
		t.Fatalf("expected ErrSaleInProgress, got %v", err)
	}

	if err := UpdateTransition(ctx, database, tr.ID, model.TransitionPending, TransitionChange{Status: model.TransitionRejected}); err != nil {
		t.Fatalf("UpdateTransition: %v", err)
	}
	if _, err := CreateBooking(ctx, database, item.ID, c.ID, day(10), day(12), decimal.Zero); err != nil {
		t.Fatalf("booking after rejected sale: %v", err)
	}
}

func TestCreateBookingInvalidRange(t *testing.T) {
	database := db.NewTestDB(t)

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")

	if _, err := CreateBooking(context.Background(), database, item.ID, c.ID, day(5), day(5), decimal.Zero); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestCancelAndReactivateBooking(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")
	b := mustBooking(t, database, item.ID, c.ID, day(10), 3)
	SetBookingStatus(ctx, database, b.ID, model.BookingStatusConfirmed)

	cancelled, err := CancelBooking(ctx, database, b.ID, "sold", day(2))
	if err != nil || !cancelled {
		t.Fatalf("CancelBooking: cancelled=%v err=%v", cancelled, err)
	}
	got, _ := GetBooking(ctx, database, b.ID)
	if got.Status != model.BookingStatusCancelled || got.CancellationReason != "sold" || got.CancelledAt == nil {
		t.Fatalf("expected cancelled booking, got %+v", got)
	}

	open, _ := ListOpenBookings(ctx, database, item.ID)
	if len(open) != 0 {
		t.Errorf("expected no open bookings, got %d", len(open))
	}

	changed, err := ReactivateBooking(ctx, database, b.ID, model.BookingStatusConfirmed)
	if err != nil || !changed {
		t.Fatalf("ReactivateBooking: changed=%v err=%v", changed, err)
	}
	got, _ = GetBooking(ctx, database, b.ID)
	if got.Status != model.BookingStatusConfirmed || got.CancellationReason != "" || got.CancelledAt != nil {
		t.Errorf("expected restored booking, got %+v", got)
	}

	// A booking that is not cancelled is left alone.
	changed, _ = ReactivateBooking(ctx, database, b.ID, model.BookingStatusPending)
	if changed {
		t.Error("expected no change for a live booking")
	}
}

func TestListBookingsFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	drill := mustItem(t, database, "Drill")
	saw := mustItem(t, database, "Saw")
	ana := mustCustomer(t, database, "Ana")
	bor := mustCustomer(t, database, "Bor")
	mustBooking(t, database, drill.ID, ana.ID, day(1), 1)
	mustBooking(t, database, drill.ID, bor.ID, day(5), 1)
	mustBooking(t, database, saw.ID, ana.ID, day(1), 1)

	byItem, _ := ListBookings(ctx, database, BookingFilter{ItemID: drill.ID})
	if len(byItem) != 2 {
		t.Errorf("expected 2 drill bookings, got %d", len(byItem))
	}
	byCustomer, _ := ListBookings(ctx, database, BookingFilter{CustomerID: ana.ID})
	if len(byCustomer) != 2 {
		t.Errorf("expected 2 bookings for Ana, got %d", len(byCustomer))
	}
	both, _ := ListBookings(ctx, database, BookingFilter{ItemID: saw.ID, CustomerID: bor.ID})
	if len(both) != 0 {
		t.Errorf("expected none, got %d", len(both))
	}
}

func TestBookingSlotTakenExcludesSelf(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")
	b := mustBooking(t, database, item.ID, c.ID, day(10), 3)

	taken, _ := BookingSlotTaken(ctx, database, item.ID, b.ID, day(10), day(13))
	if taken {
		t.Error("a booking should not collide with itself")
	}
	taken, _ = BookingSlotTaken(ctx, database, item.ID, 0, day(11), day(12))
	if !taken {
		t.Error("expected overlap with existing booking")
	}
}

func TestCancelBookingLeavesClosedBookings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Drill")
	c := mustCustomer(t, database, "Ana")
	b := mustBooking(t, database, item.ID, c.ID, day(10), 3)
	SetBookingStatus(ctx, database, b.ID, model.BookingStatusCompleted)

	cancelled, err := CancelBooking(ctx, database, b.ID, "sold", day(2))
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled {
		t.Error("a completed booking should not be cancelled")
	}
	got, _ := GetBooking(ctx, database, b.ID)
	if got.Status != model.BookingStatusCompleted || got.CancelledAt != nil {
		t.Errorf("expected untouched completed booking, got %+v", got)
	}

	if _, err := CancelBooking(ctx, database, 999, "sold", day(2)); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for a missing booking, got %v", err)
	}
}
