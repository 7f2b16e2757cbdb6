package sale

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// highRiskScore is the risk score above which a conversion is flagged as high risk.
const highRiskScore = 75

// Policy holds the thresholds above which a transition needs approval.
type Policy struct {
	MaxConflicts          int
	MaxRevenueImpact      decimal.Decimal
	MaxRiskScore          int
	CriticalNeedsApproval bool
}

// DefaultPolicy returns the stock approval thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxConflicts:          5,
		MaxRevenueImpact:      decimal.NewFromInt(1000),
		MaxRiskScore:          highRiskScore,
		CriticalNeedsApproval: true,
	}
}

// Approval reason types.
const (
	ReasonConflictCount    = "conflict_count"
	ReasonRevenueImpact    = "revenue_impact"
	ReasonRiskScore        = "risk_score"
	ReasonCriticalConflict = "critical_conflict"
	ReasonRole             = "role"
)

// ApprovalReason explains one threshold a transition exceeded.
type ApprovalReason struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Threshold   string `json:"threshold"`
	ActualValue string `json:"actual_value"`
}

// ApprovalCheck is the outcome of evaluating a report against the policy.
type ApprovalCheck struct {
	Required bool             `json:"required"`
	Reasons  []ApprovalReason `json:"reasons"`
}

// CheckApprovalRequirements decides whether a transition with report,
// initiated by actor, needs a manager's approval.
func (p Policy) CheckApprovalRequirements(report *ConflictReport, actor model.Actor) ApprovalCheck {
	check := ApprovalCheck{Reasons: []ApprovalReason{}}
	add := func(typ, desc, threshold, actual string) {
		check.Reasons = append(check.Reasons, ApprovalReason{Type: typ, Description: desc, Threshold: threshold, ActualValue: actual})
	}

	if n := report.TotalConflicts(); n > p.MaxConflicts {
		add(ReasonConflictCount, fmt.Sprintf("%s exceed the limit of %d", plural(n, "conflict"), p.MaxConflicts),
			strconv.Itoa(p.MaxConflicts), strconv.Itoa(n))
	}
	if report.RevenueImpact.GreaterThan(p.MaxRevenueImpact) {
		add(ReasonRevenueImpact, "Revenue impact exceeds the approval limit",
			p.MaxRevenueImpact.StringFixed(2), report.RevenueImpact.StringFixed(2))
	}
	if report.RiskScore > p.MaxRiskScore {
		add(ReasonRiskScore, "Risk score exceeds the approval limit",
			strconv.Itoa(p.MaxRiskScore), strconv.Itoa(report.RiskScore))
	}
	if p.CriticalNeedsApproval && report.HasSeverity(model.SeverityCritical) {
		add(ReasonCriticalConflict, "At least one conflict is critical",
			string(model.SeverityCritical), string(model.SeverityCritical))
	}
	if report.HasConflicts() && !actor.Can(model.PermSalesApprove) {
		add(ReasonRole, "Only managers and admins may convert items with conflicts without approval",
			model.RoleManager, actor.Role)
	}

	check.Required = len(check.Reasons) > 0
	return check
}

// Failsafe snapshots item and booking state before conflicts are processed
// and restores it on rollback.
type Failsafe struct {
	Now func() time.Time
}

// CreateCheckpoint captures the item's sale flags, its open bookings and its
// unreleased holds for transitionID.
func (f *Failsafe) CreateCheckpoint(ctx context.Context, q store.DBTX, transitionID, itemID int64) (*model.Checkpoint, error) {
	item, err := store.GetItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("creating checkpoint: item %d not found", itemID)
	}
	bookings, err := store.ListOpenBookings(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	holds, err := store.ListHolds(ctx, q, itemID, true)
	if err != nil {
		return nil, err
	}

	data := model.CheckpointData{
		ItemID: itemID,
		Item: model.ItemFlags{
			IsRentable: item.IsRentable,
			IsSaleable: item.IsSaleable,
			SaleStatus: item.SaleStatus,
			SalePrice:  item.SalePrice,
			ListedAt:   item.ListedAt,
		},
		Bookings: make([]model.BookingSnapshot, 0, len(bookings)),
		Holds:    make([]model.HoldSnapshot, 0, len(holds)),
		TakenAt:  f.Now(),
	}
	for _, b := range bookings {
		data.Bookings = append(data.Bookings, model.BookingSnapshot{
			ID: b.ID, CustomerID: b.CustomerID, StartDate: b.StartDate, EndDate: b.EndDate, Status: b.Status,
		})
	}
	for _, h := range holds {
		data.Holds = append(data.Holds, model.HoldSnapshot{ID: h.ID, Reason: h.Reason, HeldUntil: h.HeldUntil})
	}

	return store.CreateCheckpoint(ctx, q, transitionID, data)
}

// CanRollback reports whether transitionID has an unused checkpoint.
func CanRollback(ctx context.Context, q store.DBTX, transitionID int64) (bool, error) {
	cp, err := store.GetCheckpoint(ctx, q, transitionID)
	if err != nil {
		return false, err
	}
	return cp != nil && !cp.Used, nil
}

// RollbackResult reports what a rollback restored.
type RollbackResult struct {
	Success            bool     `json:"success"`
	RollbackID         string   `json:"rollback_id"`
	ItemsRestored      int      `json:"items_restored"`
	BookingsRestored   int      `json:"bookings_restored"`
	BookingsExpected   int      `json:"bookings_expected"`
	HoldsRestored      int      `json:"holds_restored"`
	RestoredBookingIDs []int64  `json:"restored_booking_ids"`
	NotificationsSent  int      `json:"notifications_sent"`
	Message            string   `json:"message"`
	Errors             []string `json:"errors"`
}

// RollbackToCheckpoint restores the state captured in cp and marks it used.
// Only bookings and holds the transition's own resolutions cancelled or
// released come back. Bookings that cannot be reactivated are reported in
// Errors; the rollback still succeeds once the item flags are back.
func (f *Failsafe) RollbackToCheckpoint(ctx context.Context, q store.DBTX, cp *model.Checkpoint, reason string) (*RollbackResult, error) {
	result := &RollbackResult{
		RollbackID:         uuid.Must(uuid.NewV7()).String(),
		RestoredBookingIDs: []int64{},
		Errors:             []string{},
	}

	cancelled, err := store.ListResolvedEntities(ctx, q, cp.TransitionID, model.ActionCancelBooking)
	if err != nil {
		return nil, err
	}
	released, err := store.ListResolvedEntities(ctx, q, cp.TransitionID, model.ActionReleaseHold)
	if err != nil {
		return nil, err
	}

	if err := store.RestoreItemFlags(ctx, q, cp.Data.ItemID, cp.Data.Item); err != nil {
		result.Message = "Rollback failed: item state could not be restored"
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	result.ItemsRestored = 1

	for _, snap := range cp.Data.Bookings {
		if !cancelled[snap.ID] {
			continue
		}
		restored, err := f.restoreBooking(ctx, q, snap)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("booking #%d: %v", snap.ID, err))
			continue
		}
		if restored {
			result.BookingsExpected++
			result.BookingsRestored++
			result.RestoredBookingIDs = append(result.RestoredBookingIDs, snap.ID)
		}
	}
	result.BookingsExpected += len(result.Errors)

	for _, snap := range cp.Data.Holds {
		if !released[snap.ID] {
			continue
		}
		reopened, err := store.ReopenHold(ctx, q, snap.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("hold #%d: %v", snap.ID, err))
			continue
		}
		if reopened {
			result.HoldsRestored++
		}
	}

	used, err := store.MarkCheckpointUsed(ctx, q, cp.ID, f.Now())
	if err != nil {
		return nil, err
	}
	if !used {
		return nil, fmt.Errorf("checkpoint %d was consumed concurrently", cp.ID)
	}

	result.Success = true
	result.Message = fmt.Sprintf("Rolled back: %s. Restored %s.", reason, plural(result.BookingsRestored, "booking"))
	if len(result.Errors) > 0 {
		result.Message = fmt.Sprintf("Partially rolled back: %s. Restored %d of %d bookings.",
			reason, result.BookingsRestored, result.BookingsExpected)
	}
	return result, nil
}

// restoreBooking reactivates a booking cancelled by the transition. It
// reports false for bookings that are no longer cancelled.
func (f *Failsafe) restoreBooking(ctx context.Context, q store.DBTX, snap model.BookingSnapshot) (bool, error) {
	b, err := store.GetBooking(ctx, q, snap.ID)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, fmt.Errorf("booking no longer exists")
	}
	if b.Status != model.BookingStatusCancelled {
		return false, nil
	}

	taken, err := store.BookingSlotTaken(ctx, q, b.ItemID, b.ID, snap.StartDate, snap.EndDate)
	if err != nil {
		return false, err
	}
	if taken {
		return false, fmt.Errorf("slot is now taken by another booking")
	}

	return store.ReactivateBooking(ctx, q, snap.ID, snap.Status)
}
