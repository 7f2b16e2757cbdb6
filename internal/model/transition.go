package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitionStatus is the lifecycle state of a sale transition.
type TransitionStatus string

// Transition statuses.
const (
	TransitionPending          TransitionStatus = "pending"
	TransitionAwaitingApproval TransitionStatus = "awaiting_approval"
	TransitionApproved         TransitionStatus = "approved"
	TransitionProcessing       TransitionStatus = "processing"
	TransitionCompleted        TransitionStatus = "completed"
	TransitionRejected         TransitionStatus = "rejected"
	TransitionFailed           TransitionStatus = "failed"
	TransitionRolledBack       TransitionStatus = "rolled_back"
)

// TransitionStatuses lists every status in lifecycle order.
var TransitionStatuses = []TransitionStatus{
	TransitionPending, TransitionAwaitingApproval, TransitionApproved, TransitionProcessing,
	TransitionCompleted, TransitionRejected, TransitionFailed, TransitionRolledBack,
}

// Active reports whether the transition still blocks other transitions for its item.
func (s TransitionStatus) Active() bool {
	switch s {
	case TransitionPending, TransitionAwaitingApproval, TransitionApproved, TransitionProcessing:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TransitionStatus) Valid() bool {
	for _, v := range TransitionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Transition is one attempt to convert a rentable item into a for-sale item.
// Rows are never deleted; they are the audit record of the attempt.
type Transition struct {
	ID               int64               `json:"id"`
	ItemID           int64               `json:"item_id"`
	RequestedBy      int64               `json:"requested_by"`
	SalePrice        decimal.NullDecimal `json:"sale_price"`
	EffectiveDate    time.Time           `json:"effective_date"`
	Status           TransitionStatus    `json:"status"`
	ConflictSummary  *ConflictSummary    `json:"conflict_summary,omitempty"`
	RevenueImpact    decimal.Decimal     `json:"revenue_impact"`
	ApprovalRequired bool                `json:"approval_required"`
	ApprovedBy       *int64              `json:"approved_by,omitempty"`
	ApprovalDate     *time.Time          `json:"approval_date,omitempty"`
	ApprovalNotes    string              `json:"approval_notes,omitempty"`
	RejectionReason  string              `json:"rejection_reason,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	RolledBackAt     *time.Time          `json:"rolled_back_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// ConflictType classifies what obstructs a sale.
type ConflictType string

// Conflict types.
const (
	ConflictFutureBooking  ConflictType = "future_booking"
	ConflictPendingBooking ConflictType = "pending_booking"
	ConflictActiveRental   ConflictType = "active_rental"
	ConflictInventoryHold  ConflictType = "inventory_hold"
)

// Entity types a conflict can point at.
const (
	EntityBooking = "booking"
	EntityHold    = "hold"
)

// Severity ranks how disruptive a conflict is.
type Severity string

// Severities, lowest first.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight is the severity's contribution to a risk score.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	}
	return 0
}

// ResolutionAction is how a conflict gets handled when a transition is confirmed.
type ResolutionAction string

// Resolution actions.
const (
	ActionCancelBooking    ResolutionAction = "cancel_booking"
	ActionWaitForReturn    ResolutionAction = "wait_for_return"
	ActionOfferAlternative ResolutionAction = "offer_alternative"
	ActionReleaseHold      ResolutionAction = "release_hold"
)

// AppliesTo reports whether the action can resolve a conflict on entityType.
func (a ResolutionAction) AppliesTo(entityType string) bool {
	switch a {
	case ActionCancelBooking, ActionWaitForReturn, ActionOfferAlternative:
		return entityType == EntityBooking
	case ActionReleaseHold:
		return entityType == EntityHold
	}
	return false
}

// Valid reports whether a is a known action.
func (a ResolutionAction) Valid() bool {
	switch a {
	case ActionCancelBooking, ActionWaitForReturn, ActionOfferAlternative, ActionReleaseHold:
		return true
	}
	return false
}

// Conflict is one booking, rental or hold that obstructs a transition.
type Conflict struct {
	ID               int64            `json:"id"`
	TransitionID     int64            `json:"transition_id"`
	Type             ConflictType     `json:"conflict_type"`
	EntityType       string           `json:"entity_type"`
	EntityID         int64            `json:"entity_id"`
	Severity         Severity         `json:"severity"`
	Description      string           `json:"description"`
	CustomerID       *int64           `json:"customer_id,omitempty"`
	FinancialImpact  decimal.Decimal  `json:"financial_impact"`
	Resolved         bool             `json:"resolved"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	ResolutionAction ResolutionAction `json:"resolution_action,omitempty"`
	DetectedAt       time.Time        `json:"detected_at"`

	// Detail is set by detection and feeds the transition's conflict summary.
	Detail ConflictDetail `json:"-"`
}

// Resolution execution statuses.
const (
	ExecutionExecuted = "executed"
	ExecutionSkipped  = "skipped"
	ExecutionFailed   = "failed"
)

// Resolution records how a conflict was actually handled. Immutable.
type Resolution struct {
	ID              int64            `json:"id"`
	ConflictID      int64            `json:"conflict_id"`
	ActionTaken     ResolutionAction `json:"action_taken"`
	ExecutedBy      *int64           `json:"executed_by,omitempty"`
	ExecutionStatus string           `json:"execution_status"`
	Notes           string           `json:"notes,omitempty"`
	ExecutedAt      time.Time        `json:"executed_at"`
}

// Checkpoint is the item and booking state captured before conflicts are processed.
type Checkpoint struct {
	ID           int64          `json:"id"`
	TransitionID int64          `json:"transition_id"`
	Data         CheckpointData `json:"checkpoint_data"`
	Used         bool           `json:"used"`
	UsedAt       *time.Time     `json:"used_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CheckpointData is the snapshot payload of a checkpoint.
type CheckpointData struct {
	ItemID   int64             `json:"item_id"`
	Item     ItemFlags         `json:"item"`
	Bookings []BookingSnapshot `json:"bookings"`
	Holds    []HoldSnapshot    `json:"holds"`
	TakenAt  time.Time         `json:"taken_at"`
}

// ItemFlags are the sale-related fields of an item.
type ItemFlags struct {
	IsRentable bool                `json:"is_rentable"`
	IsSaleable bool                `json:"is_saleable"`
	SaleStatus string              `json:"sale_status,omitempty"`
	SalePrice  decimal.NullDecimal `json:"sale_price"`
	ListedAt   *time.Time          `json:"listed_at,omitempty"`
}

// BookingSnapshot is a booking's state at checkpoint time.
type BookingSnapshot struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Status     string    `json:"status"`
}

// HoldSnapshot is an unreleased hold at checkpoint time.
type HoldSnapshot struct {
	ID        int64      `json:"id"`
	Reason    string     `json:"reason"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

// NotificationKind says why a customer is being contacted.
type NotificationKind string

// Notification kinds.
const (
	NotificationConflictResolution NotificationKind = "conflict_resolution"
	NotificationRollback           NotificationKind = "rollback"
)

// Delivery statuses of the notification outbox.
const (
	DeliveryQueued = "queued"
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// CustomerResponse is a customer's answer to a notification.
type CustomerResponse string

// Customer responses.
const (
	ResponseAccept             CustomerResponse = "accept"
	ResponseReject             CustomerResponse = "reject"
	ResponseRequestAlternative CustomerResponse = "request_alternative"
)

// Valid reports whether r is a known response.
func (r CustomerResponse) Valid() bool {
	switch r {
	case ResponseAccept, ResponseReject, ResponseRequestAlternative:
		return true
	}
	return false
}

// Notification is a customer-facing message about a transition.
type Notification struct {
	ID               int64            `json:"id"`
	TransitionID     int64            `json:"transition_id"`
	ConflictID       *int64           `json:"conflict_id,omitempty"`
	CustomerID       int64            `json:"customer_id"`
	Kind             NotificationKind `json:"kind"`
	Message          string           `json:"message"`
	DeliveryRef      string           `json:"delivery_ref"`
	DeliveryStatus   string           `json:"delivery_status"`
	Attempts         int              `json:"attempts"`
	LastError        string           `json:"last_error,omitempty"`
	SentAt           *time.Time       `json:"sent_at,omitempty"`
	CustomerResponse CustomerResponse `json:"customer_response,omitempty"`
	RespondedAt      *time.Time       `json:"responded_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`

	// Joined fields (not always populated).
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}
