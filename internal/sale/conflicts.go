// Package sale implements the sale transition engine: converting a rentable
// item into one listed for sale while handling the bookings, rentals and
// holds that stand in the way.
package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/shopspring/decimal"
)

// Detection windows.
const (
	imminentWindow = 7 * 24 * time.Hour
	nearWindow     = 30 * 24 * time.Hour
	maxRiskScore   = 100
)

// ConflictReport is the outcome of scanning an item for obstructions.
type ConflictReport struct {
	ItemID         int64            `json:"item_id"`
	Conflicts      []model.Conflict `json:"conflicts"`
	RevenueImpact  decimal.Decimal  `json:"revenue_impact"`
	RiskScore      int              `json:"risk_score"`
	Recommendation string           `json:"recommendation"`
	DetectedAt     time.Time        `json:"detected_at"`

	customerNames map[int64]string
}

// AffectedCustomer is a customer with at least one conflicting booking.
type AffectedCustomer struct {
	CustomerID    int64           `json:"customer_id"`
	Name          string          `json:"name"`
	Bookings      int             `json:"bookings"`
	RevenueImpact decimal.Decimal `json:"revenue_impact"`
}

// HasConflicts reports whether anything obstructs the sale.
func (r *ConflictReport) HasConflicts() bool { return len(r.Conflicts) > 0 }

// TotalConflicts is the number of conflicts found.
func (r *ConflictReport) TotalConflicts() int { return len(r.Conflicts) }

// HasSeverity reports whether any conflict has severity s.
func (r *ConflictReport) HasSeverity(s model.Severity) bool {
	for _, c := range r.Conflicts {
		if c.Severity == s {
			return true
		}
	}
	return false
}

// AffectedCustomers returns the distinct customers behind the conflicts in
// the order they were first seen.
func (r *ConflictReport) AffectedCustomers() []AffectedCustomer {
	var out []AffectedCustomer
	index := make(map[int64]int)
	for _, c := range r.Conflicts {
		if c.CustomerID == nil {
			continue
		}
		id := *c.CustomerID
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, AffectedCustomer{CustomerID: id, Name: r.customerNames[id]})
		}
		out[i].Bookings++
		out[i].RevenueImpact = out[i].RevenueImpact.Add(c.FinancialImpact)
	}
	return out
}

// Summary converts the report into the snapshot stored on a transition.
func (r *ConflictReport) Summary() *model.ConflictSummary {
	s := &model.ConflictSummary{
		Total:         len(r.Conflicts),
		RevenueImpact: r.RevenueImpact,
		RiskScore:     r.RiskScore,
		BySeverity:    make(map[model.Severity]int),
		Entries:       make([]model.SummaryEntry, 0, len(r.Conflicts)),
	}
	for _, c := range r.Conflicts {
		s.BySeverity[c.Severity]++
		s.Entries = append(s.Entries, model.SummaryEntry{
			ConflictType:    c.Type,
			Severity:        c.Severity,
			FinancialImpact: c.FinancialImpact,
			Detail:          c.Detail,
		})
	}
	return s
}

// Detector scans items for bookings, rentals and holds that block a sale.
type Detector struct {
	Now func() time.Time
}

// DetectAllConflicts returns the report for itemID. An item with nothing in
// the way yields an empty report.
func (d *Detector) DetectAllConflicts(ctx context.Context, q store.DBTX, itemID int64) (*ConflictReport, error) {
	bookings, err := store.ListOpenBookings(ctx, q, itemID)
	if err != nil {
		return nil, fmt.Errorf("detecting booking conflicts: %w", err)
	}
	holds, err := store.ListHolds(ctx, q, itemID, true)
	if err != nil {
		return nil, fmt.Errorf("detecting hold conflicts: %w", err)
	}
	return buildReport(itemID, bookings, holds, d.Now()), nil
}

func buildReport(itemID int64, bookings []model.Booking, holds []model.InventoryHold, now time.Time) *ConflictReport {
	r := &ConflictReport{
		ItemID:        itemID,
		Conflicts:     []model.Conflict{},
		DetectedAt:    now,
		customerNames: make(map[int64]string),
	}

	for _, b := range bookings {
		c, ok := bookingConflict(b, now)
		if !ok {
			continue
		}
		r.customerNames[b.CustomerID] = b.CustomerName
		r.Conflicts = append(r.Conflicts, c)
	}
	for _, h := range holds {
		if !h.ActiveAt(now) {
			continue
		}
		r.Conflicts = append(r.Conflicts, holdConflict(h, now))
	}

	score := 0
	for _, c := range r.Conflicts {
		r.RevenueImpact = r.RevenueImpact.Add(c.FinancialImpact)
		score += c.Severity.Weight()
	}
	r.RiskScore = min(score, maxRiskScore)
	r.Recommendation = recommend(r)
	return r
}

func bookingConflict(b model.Booking, now time.Time) (model.Conflict, bool) {
	customerID := b.CustomerID
	c := model.Conflict{
		EntityType:      model.EntityBooking,
		EntityID:        b.ID,
		CustomerID:      &customerID,
		FinancialImpact: b.TotalAmount,
		DetectedAt:      now,
	}
	untilStart := b.StartDate.Sub(now)
	span := fmt.Sprintf("%s to %s", b.StartDate.Format("2 Jan 2006"), b.EndDate.Format("2 Jan 2006"))

	switch b.Status {
	case model.BookingStatusActive:
		overdue := b.EndDate.Before(now)
		c.Type = model.ConflictActiveRental
		c.Severity = model.SeverityHigh
		c.Description = fmt.Sprintf("Item is rented out to %s until %s", b.CustomerName, b.EndDate.Format("2 Jan 2006"))
		if overdue {
			c.Severity = model.SeverityCritical
			c.Description = fmt.Sprintf("Rental to %s is overdue since %s", b.CustomerName, b.EndDate.Format("2 Jan 2006"))
		}
		c.Detail = model.RentalDetail{
			BookingID: b.ID, CustomerID: b.CustomerID, StartDate: b.StartDate, DueDate: b.EndDate, Overdue: overdue,
		}
		return c, true

	case model.BookingStatusConfirmed:
		if b.EndDate.Before(now) {
			return c, false
		}
		c.Type = model.ConflictFutureBooking
		switch {
		case untilStart <= imminentWindow:
			c.Severity = model.SeverityHigh
		case untilStart <= nearWindow:
			c.Severity = model.SeverityMedium
		default:
			c.Severity = model.SeverityLow
		}
		c.Description = fmt.Sprintf("Confirmed booking #%d by %s, %s", b.ID, b.CustomerName, span)

	case model.BookingStatusPending:
		if b.EndDate.Before(now) {
			return c, false
		}
		c.Type = model.ConflictPendingBooking
		c.Severity = model.SeverityLow
		if untilStart <= imminentWindow {
			c.Severity = model.SeverityMedium
		}
		c.Description = fmt.Sprintf("Pending booking #%d by %s, %s", b.ID, b.CustomerName, span)

	default:
		return c, false
	}

	c.Detail = model.BookingDetail{
		BookingID: b.ID, CustomerID: b.CustomerID, Status: b.Status, StartDate: b.StartDate, EndDate: b.EndDate,
	}
	return c, true
}

func holdConflict(h model.InventoryHold, now time.Time) model.Conflict {
	desc := fmt.Sprintf("Item is on hold: %s", h.Reason)
	if h.HeldUntil != nil {
		desc += fmt.Sprintf(" (until %s)", h.HeldUntil.Format("2 Jan 2006"))
	}
	return model.Conflict{
		Type:            model.ConflictInventoryHold,
		EntityType:      model.EntityHold,
		EntityID:        h.ID,
		Severity:        model.SeverityMedium,
		Description:     desc,
		FinancialImpact: decimal.Zero,
		DetectedAt:      now,
		Detail:          model.HoldDetail{HoldID: h.ID, Reason: h.Reason, HeldUntil: h.HeldUntil},
	}
}

func recommend(r *ConflictReport) string {
	switch {
	case !r.HasConflicts():
		return "No conflicts found. The item can be listed for sale right away."
	case r.HasSeverity(model.SeverityCritical):
		return "An overdue rental is still out. Recover the item before converting it to sale."
	case r.RiskScore > highRiskScore:
		return "High risk conversion. Consider postponing until upcoming bookings are fulfilled."
	}
	for _, c := range r.Conflicts {
		if c.Type == model.ConflictActiveRental {
			return "The item is rented out. Wait for the return before listing it."
		}
	}
	return fmt.Sprintf("Review %s and choose a resolution for each before confirming.", plural(len(r.Conflicts), "conflict"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// SaveConflicts persists conflicts for a transition, assigning their IDs.
func SaveConflicts(ctx context.Context, q store.DBTX, transitionID int64, conflicts []model.Conflict) error {
	for i := range conflicts {
		conflicts[i].TransitionID = transitionID
		if err := store.CreateConflict(ctx, q, &conflicts[i]); err != nil {
			return fmt.Errorf("saving conflicts: %w", err)
		}
	}
	return nil
}
