package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/izposoja/internal/apperr"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// MinRejectionReasonLength is the shortest accepted rejection reason.
const MinRejectionReasonLength = 10

// Service orchestrates sale transitions: eligibility, initiation,
// confirmation, approval and rollback.
type Service struct {
	DB     *sql.DB
	Policy Policy
	// Now is the clock; tests replace it.
	Now func() time.Time

	detector *Detector
	failsafe *Failsafe
	notifier *Notifier
}

// NewService returns a Service using policy for approval decisions.
func NewService(db *sql.DB, policy Policy) *Service {
	s := &Service{DB: db, Policy: policy, Now: time.Now}
	s.detector = &Detector{Now: s.clock}
	s.failsafe = &Failsafe{Now: s.clock}
	s.notifier = NewNotifier(s.clock)
	return s
}

func (s *Service) clock() time.Time {
	return s.Now().UTC()
}

// Notifier returns the service's notification engine.
func (s *Service) Notifier() *Notifier {
	return s.notifier
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// fire moves t along ev, stamping change, and updates t in place.
func fire(ctx context.Context, q store.DBTX, t *model.Transition, ev Event, change store.TransitionChange) error {
	to, err := Next(t.Status, ev)
	if err != nil {
		return err
	}
	change.Status = to
	if err := store.UpdateTransition(ctx, q, t.ID, t.Status, change); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return apperr.Validation("transition %d was modified concurrently", t.ID)
		}
		return err
	}
	t.Status = to
	return nil
}

func (s *Service) loadTransition(ctx context.Context, q store.DBTX, id int64) (*model.Transition, error) {
	t, err := store.GetTransition(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("transition", id)
	}
	return t, nil
}

func requirePermission(actor model.Actor, perm model.Permission) error {
	if !actor.Can(perm) {
		return apperr.Forbidden(fmt.Sprintf("role %q may not %s", actor.Role, perm))
	}
	return nil
}

// CheckSaleEligibility reports whether itemID can be converted to sale by
// actor. It does not modify anything.
func (s *Service) CheckSaleEligibility(ctx context.Context, itemID int64, actor model.Actor) (*SaleEligibilityResponse, error) {
	item, err := store.GetItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, apperr.NotFound("item", itemID)
	}

	resp := &SaleEligibilityResponse{
		ItemID:            itemID,
		ApprovalReasons:   []ApprovalReason{},
		AffectedCustomers: []AffectedCustomer{},
		Warnings:          []string{},
	}

	if item.IsSaleable {
		resp.Reason = "Item is already for sale"
		resp.Recommendation = "Nothing to do: the item is already listed for sale."
		return resp, nil
	}

	active, err := store.GetActiveTransition(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		resp.Reason = fmt.Sprintf("Item already has an active sale transition (#%d)", active.ID)
		resp.Recommendation = "Finish or reject the open transition first."
		return resp, nil
	}

	resp.Eligible = true
	if !item.IsRentable {
		resp.ConflictSummary = (&ConflictReport{}).Summary()
		resp.Recommendation = "Item is not rentable, so it can be listed for sale without conflicts."
		return resp, nil
	}

	report, err := s.detector.DetectAllConflicts(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	check := s.Policy.CheckApprovalRequirements(report, actor)

	resp.ConflictSummary = report.Summary()
	resp.RequiresApproval = check.Required
	resp.ApprovalReasons = check.Reasons
	resp.RevenueImpact = report.RevenueImpact
	resp.AffectedCustomers = report.AffectedCustomers()
	if resp.AffectedCustomers == nil {
		resp.AffectedCustomers = []AffectedCustomer{}
	}
	resp.Recommendation = report.Recommendation
	if report.RiskScore > highRiskScore {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("High risk: risk score %d exceeds %d", report.RiskScore, highRiskScore))
	}
	if check.Required {
		resp.Warnings = append(resp.Warnings, "Manager approval required")
	}
	return resp, nil
}

// InitiateSaleTransition starts converting itemID to sale. The transition,
// its conflicts and its checkpoint are written together. Items without
// conflicts are listed immediately.
func (s *Service) InitiateSaleTransition(ctx context.Context, itemID int64, req InitiateRequest, actor model.Actor) (*SaleTransitionResponse, error) {
	if err := requirePermission(actor, model.PermSalesInitiate); err != nil {
		return nil, err
	}
	if req.SalePrice.Valid && req.SalePrice.Decimal.IsNegative() {
		return nil, apperr.Validation("sale price must not be negative")
	}

	eligibility, err := s.CheckSaleEligibility(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, apperr.Validation("item %d is not eligible for sale: %s", itemID, eligibility.Reason)
	}

	effective := s.clock()
	if req.EffectiveDate != nil {
		effective = req.EffectiveDate.UTC()
	}

	t := &model.Transition{
		ItemID:        itemID,
		RequestedBy:   actor.UserID,
		SalePrice:     req.SalePrice,
		EffectiveDate: effective,
		Status:        model.TransitionPending,
		Notes:         req.Notes,
	}
	var report *ConflictReport
	var check ApprovalCheck

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := store.CreateTransition(ctx, tx, t); err != nil {
			if errors.Is(err, store.ErrActiveTransitionExists) {
				return apperr.Validation("item %d already has an active sale transition", itemID)
			}
			return err
		}

		report = &ConflictReport{Conflicts: []model.Conflict{}}
		if eligibility.ConflictSummary != nil && eligibility.ConflictSummary.Total > 0 {
			if report, err = s.detector.DetectAllConflicts(ctx, tx, itemID); err != nil {
				return err
			}
		}
		if err := SaveConflicts(ctx, tx, t.ID, report.Conflicts); err != nil {
			return err
		}

		check = s.Policy.CheckApprovalRequirements(report, actor)
		if err := store.SetTransitionAssessment(ctx, tx, t.ID, report.Summary(), check.Required); err != nil {
			return err
		}
		if _, err := s.failsafe.CreateCheckpoint(ctx, tx, t.ID, itemID); err != nil {
			return err
		}

		if check.Required {
			return fire(ctx, tx, t, EventRequireApproval, store.TransitionChange{})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("sale transition initiated", "transition", t.ID, "item", itemID,
		"conflicts", report.TotalConflicts(), "approval_required", check.Required, "by", actor.Username)

	resp := &SaleTransitionResponse{
		TransitionID:      t.ID,
		Status:            t.Status,
		ConflictsFound:    report.TotalConflicts(),
		AffectedCustomers: len(report.AffectedCustomers()),
		RequiresApproval:  check.Required,
		ApprovalReasons:   check.Reasons,
	}

	switch {
	case check.Required:
		resp.Message = "Sale transition created and waiting for approval"
		resp.NextSteps = []string{
			"Wait for a manager to approve the transition",
			"The approver confirms the conflict resolutions",
		}
	case !report.HasConflicts():
		if err := s.complete(ctx, t); err != nil {
			return nil, err
		}
		resp.Status = t.Status
		resp.Message = "No conflicts found, item listed for sale"
		resp.NextSteps = []string{}
	default:
		resp.Message = fmt.Sprintf("Sale transition created with %s", plural(report.TotalConflicts(), "conflict"))
		resp.NextSteps = []string{
			"Review the conflicts",
			"Choose a resolution for each conflict",
			"Confirm the transition",
		}
	}
	return resp, nil
}

// complete lists the item for sale and closes a transition that has
// nothing left to resolve.
func (s *Service) complete(ctx context.Context, t *model.Transition) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if t.Status != model.TransitionProcessing {
			if err := fire(ctx, tx, t, EventProcess, store.TransitionChange{}); err != nil {
				return err
			}
		}
		return s.completeTransition(ctx, tx, t)
	})
}

// completeTransition flips the item to saleable and marks t completed.
func (s *Service) completeTransition(ctx context.Context, q store.DBTX, t *model.Transition) error {
	at := s.clock()
	if err := store.ListItemForSale(ctx, q, t.ItemID, t.SalePrice, at); err != nil {
		return err
	}
	if err := fire(ctx, q, t, EventComplete, store.TransitionChange{CompletedAt: &at}); err != nil {
		return err
	}
	t.CompletedAt = &at
	slog.Info("sale transition completed", "transition", t.ID, "item", t.ItemID)
	return nil
}

// ConfirmTransition processes a pending, awaiting-approval or approved
// transition. Confirming an awaiting-approval transition requires an
// approver and records the approval. Conflicts are resolved one by one; a
// failure marks the transition failed and is reported in the result.
func (s *Service) ConfirmTransition(ctx context.Context, id int64, conf Confirmation, actor model.Actor) (*TransitionResult, error) {
	t, err := s.loadTransition(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case model.TransitionPending, model.TransitionAwaitingApproval, model.TransitionApproved:
	default:
		return nil, apperr.Validation("transition %d cannot be confirmed in status %s", id, t.Status)
	}
	if t.Status == model.TransitionAwaitingApproval && !actor.Can(model.PermSalesApprove) {
		return nil, apperr.Validation("transition %d requires manager approval before it can be confirmed", id)
	}
	if err := requirePermission(actor, model.PermSalesConfirm); err != nil {
		return nil, err
	}

	conflicts, err := store.ListConflicts(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	actions, err := resolutionPlan(conflicts, conf.ResolutionOverrides)
	if err != nil {
		return nil, err
	}

	if !conf.Confirmed {
		reason := strings.TrimSpace(conf.Notes)
		if reason == "" {
			reason = "Declined at confirmation"
		}
		if err := fire(ctx, s.DB, t, EventReject, store.TransitionChange{RejectionReason: &reason}); err != nil {
			return nil, err
		}
		slog.Info("sale transition declined", "transition", id, "by", actor.Username)
		return &TransitionResult{
			TransitionID: id, Success: true, Status: t.Status, Message: "Transition rejected", Errors: []string{},
		}, nil
	}

	if t.Status == model.TransitionAwaitingApproval {
		at := s.clock()
		notes := conf.Notes
		if err := fire(ctx, s.DB, t, EventApprove, store.TransitionChange{
			ApprovedBy: &actor.UserID, ApprovalDate: &at, ApprovalNotes: &notes,
		}); err != nil {
			return nil, err
		}
		slog.Info("sale transition approved", "transition", id, "by", actor.Username)
	}

	if err := fire(ctx, s.DB, t, EventProcess, store.TransitionChange{}); err != nil {
		return nil, err
	}

	result := &TransitionResult{TransitionID: id, Status: t.Status, Errors: []string{}}
	if err := s.process(ctx, t, conflicts, actions, actor, result); err != nil {
		return s.failTransition(ctx, t, err, result)
	}

	result.Success = true
	result.Status = t.Status
	result.CompletionTime = t.CompletedAt
	result.Message = fmt.Sprintf("Transition completed, %s resolved", plural(result.ConflictsResolved, "conflict"))
	return result, nil
}

// resolutionPlan picks the action for each conflict: the override when one
// is given, otherwise the default for the conflict's entity.
func resolutionPlan(conflicts []model.Conflict, overrides map[int64]model.ResolutionAction) (map[int64]model.ResolutionAction, error) {
	byID := make(map[int64]model.Conflict, len(conflicts))
	for _, c := range conflicts {
		byID[c.ID] = c
	}
	for conflictID, action := range overrides {
		c, ok := byID[conflictID]
		if !ok {
			return nil, apperr.Validation("conflict %d does not belong to this transition", conflictID)
		}
		if !action.Valid() {
			return nil, apperr.Validation("unknown resolution action %q", action)
		}
		if !action.AppliesTo(c.EntityType) {
			return nil, apperr.Validation("action %s cannot resolve a %s conflict", action, c.EntityType)
		}
	}

	plan := make(map[int64]model.ResolutionAction, len(conflicts))
	for _, c := range conflicts {
		if action, ok := overrides[c.ID]; ok {
			plan[c.ID] = action
			continue
		}
		if c.EntityType == model.EntityHold {
			plan[c.ID] = model.ActionReleaseHold
		} else {
			plan[c.ID] = model.ActionWaitForReturn
		}
	}
	return plan, nil
}

// process resolves every unresolved conflict, notifies customers and
// completes t. Each resolution commits on its own.
func (s *Service) process(ctx context.Context, t *model.Transition, conflicts []model.Conflict, actions map[int64]model.ResolutionAction, actor model.Actor, result *TransitionResult) error {
	earlier, err := store.ListResolutions(ctx, s.DB, t.ID)
	if err != nil {
		return err
	}

	notify := make([]model.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Resolved {
			result.ConflictsResolved++
			if earlier[c.ID].ExecutionStatus != model.ExecutionSkipped {
				notify = append(notify, c)
			}
			continue
		}
		settled, err := s.resolveConflict(ctx, t, c, actions[c.ID], actor)
		if err != nil {
			return fmt.Errorf("resolving conflict %d: %w", c.ID, err)
		}
		result.ConflictsResolved++
		if !settled {
			notify = append(notify, c)
		}
	}

	notified, err := s.notifier.NotifyAffectedCustomers(ctx, s.DB, t.ID, notify, actions)
	if err != nil {
		return fmt.Errorf("notifying customers: %w", err)
	}
	result.CustomersNotified = notified.CustomersNotified

	return s.complete(ctx, t)
}

// resolveConflict applies action to c's booking or hold and records the
// resolution. A booking that is no longer open or a hold already released
// is left as is; the resolution is recorded as skipped and settled is true.
func (s *Service) resolveConflict(ctx context.Context, t *model.Transition, c model.Conflict, action model.ResolutionAction, actor model.Actor) (settled bool, err error) {
	at := s.clock()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		status := model.ExecutionExecuted
		var notes string
		switch action {
		case model.ActionCancelBooking:
			reason := fmt.Sprintf("Item converted to sale (transition #%d)", t.ID)
			cancelled, err := store.CancelBooking(ctx, tx, c.EntityID, reason, at)
			if err != nil {
				return err
			}
			if !cancelled {
				status, notes = model.ExecutionSkipped, "booking was no longer open"
			}
		case model.ActionReleaseHold:
			released, err := store.ReleaseHold(ctx, tx, c.EntityID, at)
			if err != nil {
				return err
			}
			if !released {
				status, notes = model.ExecutionSkipped, "hold was already released"
			}
		default:
			b, err := store.GetBooking(ctx, tx, c.EntityID)
			if err != nil {
				return err
			}
			if b != nil && !model.BookingOpen(b.Status) {
				status, notes = model.ExecutionSkipped, "booking was no longer open"
			}
		}
		if err := store.ResolveConflict(ctx, tx, c.ID, action, at); err != nil {
			return err
		}
		settled = status == model.ExecutionSkipped
		return store.CreateResolution(ctx, tx, &model.Resolution{
			ConflictID: c.ID, ActionTaken: action, ExecutedBy: &actor.UserID,
			ExecutionStatus: status, Notes: notes, ExecutedAt: at,
		})
	})
	if err != nil {
		// Keep an audit record of the failed attempt; a second failure is
		// only logged.
		if rerr := store.CreateResolution(ctx, s.DB, &model.Resolution{
			ConflictID: c.ID, ActionTaken: action, ExecutedBy: &actor.UserID,
			ExecutionStatus: model.ExecutionFailed, Notes: err.Error(), ExecutedAt: at,
		}); rerr != nil {
			slog.Warn("recording failed resolution", "conflict", c.ID, "error", rerr)
		}
		return false, err
	}
	if settled {
		slog.Info("conflict already settled", "transition", t.ID, "conflict", c.ID, "entity", c.EntityID)
	}
	return settled, nil
}

// failTransition marks t failed after a processing error and reports it.
func (s *Service) failTransition(ctx context.Context, t *model.Transition, cause error, result *TransitionResult) (*TransitionResult, error) {
	slog.Error("sale transition failed", "transition", t.ID, "error", cause)

	current, err := s.loadTransition(ctx, s.DB, t.ID)
	if err != nil {
		return nil, err
	}
	reason := cause.Error()
	if current.Status == model.TransitionProcessing {
		if err := fire(ctx, s.DB, current, EventFail, store.TransitionChange{FailureReason: &reason}); err != nil {
			return nil, err
		}
	}

	result.Success = false
	result.Status = current.Status
	result.Message = "Processing failed; the transition can be rolled back"
	result.Errors = append(result.Errors, reason)
	return result, nil
}

// ApproveTransition approves an awaiting-approval transition and processes
// it right away.
func (s *Service) ApproveTransition(ctx context.Context, id int64, notes string, overrides map[int64]model.ResolutionAction, actor model.Actor) (*TransitionResult, error) {
	if err := requirePermission(actor, model.PermSalesApprove); err != nil {
		return nil, err
	}
	t, err := s.loadTransition(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if !CanFire(t.Status, EventApprove) {
		return nil, apperr.Validation("transition %d is not awaiting approval (status %s)", id, t.Status)
	}
	return s.ConfirmTransition(ctx, id, Confirmation{Confirmed: true, ResolutionOverrides: overrides, Notes: notes}, actor)
}

// RejectTransition closes a transition without processing it.
func (s *Service) RejectTransition(ctx context.Context, id int64, reason string, actor model.Actor) (*model.Transition, error) {
	if err := requirePermission(actor, model.PermSalesApprove); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinRejectionReasonLength {
		return nil, apperr.Validation("rejection reason must be at least %d characters", MinRejectionReasonLength)
	}

	t, err := s.loadTransition(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if err := fire(ctx, s.DB, t, EventReject, store.TransitionChange{RejectionReason: &reason}); err != nil {
		return nil, err
	}
	slog.Info("sale transition rejected", "transition", id, "by", actor.Username)

	return s.loadTransition(ctx, s.DB, id)
}

// RollbackTransition restores the state checkpointed when the transition
// was initiated and notifies customers whose bookings came back.
func (s *Service) RollbackTransition(ctx context.Context, id int64, reason string, actor model.Actor) (*RollbackResult, error) {
	if err := requirePermission(actor, model.PermSalesRollback); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rollback reason is required")
	}

	t, err := s.loadTransition(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	cp, err := store.GetCheckpoint(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if cp == nil || cp.Used {
		return nil, apperr.Validation("No checkpoint available")
	}
	if !CanFire(t.Status, EventRollback) {
		return nil, apperr.Validation("transition %d cannot be rolled back in status %s", id, t.Status)
	}

	var result *RollbackResult
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = s.failsafe.RollbackToCheckpoint(ctx, tx, cp, reason)
		if err != nil {
			return err
		}
		if !result.Success {
			return errRollbackAborted
		}
		at := s.clock()
		return fire(ctx, tx, t, EventRollback, store.TransitionChange{RolledBackAt: &at})
	})
	if errors.Is(err, errRollbackAborted) {
		slog.Warn("sale rollback failed", "transition", id, "errors", result.Errors)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	sent, err := s.notifier.SendRollbackNotifications(ctx, s.DB, id, result.RestoredBookingIDs)
	if err != nil {
		slog.Warn("queueing rollback notifications", "transition", id, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("notifications: %v", err))
	}
	result.NotificationsSent = sent.TotalSent

	slog.Info("sale transition rolled back", "transition", id, "rollback", result.RollbackID,
		"bookings_restored", result.BookingsRestored, "by", actor.Username)
	return result, nil
}

var errRollbackAborted = errors.New("rollback aborted")

// GetTransitionStatus returns the progress of a transition.
func (s *Service) GetTransitionStatus(ctx context.Context, id int64) (*TransitionStatusResponse, error) {
	t, err := s.loadTransition(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	total, resolved, err := store.CountConflicts(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	cp, err := store.GetCheckpoint(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}

	return &TransitionStatusResponse{
		TransitionID:       t.ID,
		ItemID:             t.ItemID,
		ItemName:           t.ItemName,
		Status:             t.Status,
		TotalConflicts:     total,
		ResolvedConflicts:  resolved,
		ProgressPercentage: progress(resolved, total),
		CurrentStep:        currentStep(t.Status),
		CanRollback:        cp != nil && !cp.Used && CanFire(t.Status, EventRollback),
		ApprovalRequired:   t.ApprovalRequired,
		ApprovedBy:         t.ApprovedBy,
		ApprovalDate:       t.ApprovalDate,
		RejectionReason:    t.RejectionReason,
		FailureReason:      t.FailureReason,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
	}, nil
}

func progress(resolved, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(resolved)*10000/float64(total)) / 100
}

// GetAffectedBookings lists the booking conflicts of a transition together
// with the booking, its customer and how it was resolved.
func (s *Service) GetAffectedBookings(ctx context.Context, id int64) ([]AffectedBooking, error) {
	if _, err := s.loadTransition(ctx, s.DB, id); err != nil {
		return nil, err
	}
	conflicts, err := store.ListConflicts(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	resolutions, err := store.ListResolutions(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	notifications, err := store.ListNotifications(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	responses := make(map[int64]model.CustomerResponse)
	for _, n := range notifications {
		if n.Kind == model.NotificationConflictResolution && n.CustomerResponse != "" {
			responses[n.CustomerID] = n.CustomerResponse
		}
	}

	affected := []AffectedBooking{}
	for _, c := range conflicts {
		if c.EntityType != model.EntityBooking {
			continue
		}
		ab := AffectedBooking{
			ConflictID:         c.ID,
			BookingID:          c.EntityID,
			ConflictType:       c.Type,
			Severity:           c.Severity,
			FinancialImpact:    c.FinancialImpact,
			Resolved:           c.Resolved,
			ResolutionAction:   c.ResolutionAction,
			AlternativeOffered: c.ResolutionAction == model.ActionOfferAlternative,
		}
		if c.CustomerID != nil {
			ab.CustomerID = *c.CustomerID
			ab.CustomerResponse = responses[*c.CustomerID]
		}
		if r, ok := resolutions[c.ID]; ok {
			ab.ExecutionStatus = r.ExecutionStatus
		}

		b, err := store.GetBooking(ctx, s.DB, c.EntityID)
		if err != nil {
			return nil, err
		}
		if b != nil {
			ab.CustomerName = b.CustomerName
			ab.CustomerEmail = b.CustomerEmail
			ab.StartDate = &b.StartDate
			ab.EndDate = &b.EndDate
			ab.BookingStatus = b.Status
		}
		affected = append(affected, ab)
	}
	return affected, nil
}

// ListTransitions returns one page of transitions matching filter.
func (s *Service) ListTransitions(ctx context.Context, filter TransitionFilter) (*PaginatedTransitions, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown transition status %q", filter.Status)
	}
	page := max(filter.Page, 1)
	size := filter.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	items, total, err := store.ListTransitions(ctx, s.DB, store.TransitionFilter{
		Status:           filter.Status,
		ItemID:           filter.ItemID,
		ApprovalRequired: filter.RequiresApproval,
		Limit:            size,
		Offset:           (page - 1) * size,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Transition{}
	}

	return &PaginatedTransitions{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// DashboardMetrics aggregates transition activity. Daily counters start at
// UTC midnight.
func (s *Service) DashboardMetrics(ctx context.Context) (*DashboardMetrics, error) {
	now := s.clock()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := store.LoadSaleStats(ctx, s.DB, midnight)
	if err != nil {
		return nil, err
	}

	m := &DashboardMetrics{
		PendingApprovals:         stats.ByStatus[model.TransitionAwaitingApproval],
		CompletedTransitions:     stats.ByStatus[model.TransitionCompleted],
		FailedTransitions:        stats.ByStatus[model.TransitionFailed],
		ConflictsDetectedToday:   stats.ConflictsSince,
		ResolutionsExecutedToday: stats.ResolutionsSince,
		RollbacksToday:           stats.RollbacksSince,
		RevenueImpact:            stats.ActiveRevenueImpact,
	}
	for status, n := range stats.ByStatus {
		if status.Active() {
			m.ActiveTransitions += n
		}
	}
	if len(stats.CompletionDurations) > 0 {
		var sum time.Duration
		for _, d := range stats.CompletionDurations {
			sum += d
		}
		avg := sum.Hours() / float64(len(stats.CompletionDurations))
		m.AverageResolutionTimeHours = math.Round(avg*100) / 100
	}
	return m, nil
}

// RespondToNotification records a customer's answer to a notification.
func (s *Service) RespondToNotification(ctx context.Context, id int64, response model.CustomerResponse) (*model.Notification, error) {
	n, err := s.notifier.Respond(ctx, s.DB, id, response)
	if err != nil {
		return nil, err
	}
	slog.Info("notification answered", "notification", id, "response", response)
	return n, nil
}
