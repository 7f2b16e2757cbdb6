package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking is a customer's reservation of an item for a date range. An active
// booking is a rental in progress (the item is checked out).
type Booking struct {
	ID                 int64           `json:"id"`
	ItemID             int64           `json:"item_id"`
	CustomerID         int64           `json:"customer_id"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	Status             string          `json:"status"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName      string `json:"item_name,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// Booking statuses.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// BookingOpen reports whether a booking in status still occupies its slot.
func BookingOpen(status string) bool {
	switch status {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusActive:
		return true
	}
	return false
}

// bookingMoves lists the status changes staff may apply to a booking.
var bookingMoves = map[string][]string{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusActive, BookingStatusCancelled},
	BookingStatusActive:    {BookingStatusCompleted},
}

// CanMoveBooking reports whether a booking may go from one status to another.
func CanMoveBooking(from, to string) bool {
	for _, s := range bookingMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Overlaps reports whether the booking's range intersects [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartDate.Before(end) && start.Before(b.EndDate)
}

// InventoryHold blocks an item outside of any booking (maintenance, inspection).
type InventoryHold struct {
	ID         int64      `json:"id"`
	ItemID     int64      `json:"item_id"`
	Reason     string     `json:"reason"`
	HeldUntil  *time.Time `json:"held_until,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// ActiveAt reports whether the hold still blocks the item at t.
func (h InventoryHold) ActiveAt(t time.Time) bool {
	if h.ReleasedAt != nil {
		return false
	}
	return h.HeldUntil == nil || !h.HeldUntil.Before(t)
}
