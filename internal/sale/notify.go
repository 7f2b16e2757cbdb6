package sale

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/apperr"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotifyResult counts the customers a resolution notice went to.
type NotifyResult struct {
	CustomersNotified int `json:"customers_notified"`
}

// RollbackNotifyResult counts the rollback notices queued.
type RollbackNotifyResult struct {
	TotalSent int `json:"total_sent"`
}

// Notifier writes customer notifications to the outbox. Delivery is left to
// the Dispatcher.
type Notifier struct {
	Now     func() time.Time
	printer *message.Printer
}

// NewNotifier returns a Notifier formatting amounts for English readers.
func NewNotifier(now func() time.Time) *Notifier {
	return &Notifier{Now: now, printer: message.NewPrinter(language.English)}
}

var actionPhrases = map[model.ResolutionAction]string{
	model.ActionCancelBooking:    "has been cancelled",
	model.ActionWaitForReturn:    "stays in place; the item is sold once it is returned",
	model.ActionOfferAlternative: "will be moved to an equivalent item, we will contact you with the offer",
	model.ActionReleaseHold:      "is not affected",
}

// NotifyAffectedCustomers queues one notification per distinct customer
// among conflicts, describing the action taken on each of their bookings.
func (n *Notifier) NotifyAffectedCustomers(ctx context.Context, q store.DBTX, transitionID int64, conflicts []model.Conflict, actions map[int64]model.ResolutionAction) (NotifyResult, error) {
	type group struct {
		firstConflict int64
		lines         []string
	}
	var order []int64
	groups := make(map[int64]*group)

	for _, c := range conflicts {
		if c.CustomerID == nil || c.EntityType != model.EntityBooking {
			continue
		}
		g, ok := groups[*c.CustomerID]
		if !ok {
			g = &group{firstConflict: c.ID}
			groups[*c.CustomerID] = g
			order = append(order, *c.CustomerID)
		}
		g.lines = append(g.lines, fmt.Sprintf("Booking #%d (%s) %s. Amount: %s.",
			c.EntityID, c.Description, actionPhrases[actions[c.ID]], n.money(c.FinancialImpact)))
	}

	var result NotifyResult
	for _, customerID := range order {
		customer, err := store.GetCustomer(ctx, q, customerID)
		if err != nil {
			return result, err
		}
		if customer == nil {
			return result, fmt.Errorf("notifying customer %d: customer not found", customerID)
		}

		g := groups[customerID]
		conflictID := g.firstConflict
		msg := fmt.Sprintf("Hello %s, an item you booked is being converted to sale.\n%s",
			customer.Name, strings.Join(g.lines, "\n"))

		if err := store.CreateNotification(ctx, q, &model.Notification{
			TransitionID: transitionID,
			ConflictID:   &conflictID,
			CustomerID:   customerID,
			Kind:         model.NotificationConflictResolution,
			Message:      msg,
		}); err != nil {
			return result, err
		}
		result.CustomersNotified++
	}
	return result, nil
}

// SendRollbackNotifications queues one notice per restored booking.
func (n *Notifier) SendRollbackNotifications(ctx context.Context, q store.DBTX, transitionID int64, bookingIDs []int64) (RollbackNotifyResult, error) {
	var result RollbackNotifyResult
	for _, id := range bookingIDs {
		b, err := store.GetBooking(ctx, q, id)
		if err != nil {
			return result, err
		}
		if b == nil {
			continue
		}

		msg := fmt.Sprintf("Hello %s, good news: your booking #%d for %s from %s to %s has been restored. Amount: %s.",
			b.CustomerName, b.ID, b.ItemName,
			b.StartDate.Format("2 Jan 2006"), b.EndDate.Format("2 Jan 2006"), n.money(b.TotalAmount))

		if err := store.CreateNotification(ctx, q, &model.Notification{
			TransitionID: transitionID,
			CustomerID:   b.CustomerID,
			Kind:         model.NotificationRollback,
			Message:      msg,
		}); err != nil {
			return result, err
		}
		result.TotalSent++
	}
	return result, nil
}

// Respond records a customer's answer to a notification. A notification can
// only be answered once.
func (n *Notifier) Respond(ctx context.Context, q store.DBTX, id int64, response model.CustomerResponse) (*model.Notification, error) {
	if !response.Valid() {
		return nil, apperr.Validation("invalid response %q: expected accept, reject or request_alternative", response)
	}

	notification, err := store.GetNotification(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, apperr.NotFound("notification", id)
	}

	ok, err := store.SetNotificationResponse(ctx, q, id, response, n.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("notification %d has already been answered", id)
	}

	return store.GetNotification(ctx, q, id)
}

// money renders d with two decimals, grouping the whole part with the
// printer's separators.
func (n *Notifier) money(d decimal.Decimal) string {
	rounded := d.Round(2)
	whole, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")
	if w, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = n.printer.Sprintf("%d", w)
	}
	if rounded.IsNegative() {
		whole = "-" + whole
	}
	return whole + "." + frac
}
