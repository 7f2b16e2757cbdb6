package sale

import (
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

// SaleEligibilityResponse says whether an item can be converted to sale and
// what stands in the way.
type SaleEligibilityResponse struct {
	ItemID            int64                  `json:"item_id"`
	Eligible          bool                   `json:"eligible"`
	Reason            string                 `json:"reason,omitempty"`
	ConflictSummary   *model.ConflictSummary `json:"conflict_summary"`
	RequiresApproval  bool                   `json:"requires_approval"`
	ApprovalReasons   []ApprovalReason       `json:"approval_reasons"`
	RevenueImpact     decimal.Decimal        `json:"revenue_impact"`
	AffectedCustomers []AffectedCustomer     `json:"affected_customers"`
	Recommendation    string                 `json:"recommendation"`
	Warnings          []string               `json:"warnings"`
}

// InitiateRequest starts a transition.
type InitiateRequest struct {
	SalePrice     decimal.NullDecimal `json:"sale_price"`
	EffectiveDate *time.Time          `json:"effective_date"`
	Notes         string              `json:"notes"`
}

// SaleTransitionResponse is returned when a transition is initiated.
type SaleTransitionResponse struct {
	TransitionID      int64                  `json:"transition_id"`
	Status            model.TransitionStatus `json:"status"`
	ConflictsFound    int                    `json:"conflicts_found"`
	AffectedCustomers int                    `json:"affected_customers"`
	RequiresApproval  bool                   `json:"requires_approval"`
	ApprovalReasons   []ApprovalReason       `json:"approval_reasons"`
	Message           string                 `json:"message"`
	NextSteps         []string               `json:"next_steps"`
}

// Confirmation is the caller's go-ahead for processing a transition.
// ResolutionOverrides maps conflict IDs to the action to take instead of
// the default.
type Confirmation struct {
	Confirmed           bool                             `json:"confirmed"`
	ResolutionOverrides map[int64]model.ResolutionAction `json:"resolution_overrides"`
	Notes               string                           `json:"notes"`
}

// TransitionResult is the outcome of processing a transition. A processing
// failure is reported here with Success false rather than as an error.
type TransitionResult struct {
	TransitionID      int64                  `json:"transition_id"`
	Success           bool                   `json:"success"`
	Status            model.TransitionStatus `json:"status"`
	ConflictsResolved int                    `json:"conflicts_resolved"`
	CustomersNotified int                    `json:"customers_notified"`
	CompletionTime    *time.Time             `json:"completion_time"`
	Message           string                 `json:"message"`
	Errors            []string               `json:"errors"`
}

// TransitionStatusResponse is a progress view of a transition.
type TransitionStatusResponse struct {
	TransitionID       int64                  `json:"transition_id"`
	ItemID             int64                  `json:"item_id"`
	ItemName           string                 `json:"item_name"`
	Status             model.TransitionStatus `json:"status"`
	TotalConflicts     int                    `json:"total_conflicts"`
	ResolvedConflicts  int                    `json:"resolved_conflicts"`
	ProgressPercentage float64                `json:"progress_percentage"`
	CurrentStep        string                 `json:"current_step"`
	CanRollback        bool                   `json:"can_rollback"`
	ApprovalRequired   bool                   `json:"approval_required"`
	ApprovedBy         *int64                 `json:"approved_by,omitempty"`
	ApprovalDate       *time.Time             `json:"approval_date,omitempty"`
	RejectionReason    string                 `json:"rejection_reason,omitempty"`
	FailureReason      string                 `json:"failure_reason,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
}

// AffectedBooking is a booking a transition conflicts with, with its
// resolution.
type AffectedBooking struct {
	ConflictID          int64                  `json:"conflict_id"`
	BookingID           int64                  `json:"booking_id"`
	CustomerID          int64                  `json:"customer_id"`
	CustomerName        string                 `json:"customer_name"`
	CustomerEmail       string                 `json:"customer_email,omitempty"`
	StartDate           *time.Time             `json:"start_date,omitempty"`
	EndDate             *time.Time             `json:"end_date,omitempty"`
	BookingStatus       string                 `json:"booking_status,omitempty"`
	ConflictType        model.ConflictType     `json:"conflict_type"`
	Severity            model.Severity         `json:"severity"`
	FinancialImpact     decimal.Decimal        `json:"financial_impact"`
	Resolved            bool                   `json:"resolved"`
	ResolutionAction    model.ResolutionAction `json:"resolution_action,omitempty"`
	ExecutionStatus     string                 `json:"execution_status,omitempty"`
	AlternativeOffered  bool                   `json:"alternative_offered"`
	CompensationOffered *decimal.Decimal       `json:"compensation_offered"`
	CustomerResponse    model.CustomerResponse `json:"customer_response,omitempty"`
}

// TransitionFilter selects transitions for listing.
type TransitionFilter struct {
	Status           model.TransitionStatus
	ItemID           int64
	RequiresApproval *bool
	Page             int
	PageSize         int
}

// Page size limits for ListTransitions.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginatedTransitions is one page of transitions.
type PaginatedTransitions struct {
	Items      []model.Transition `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// DashboardMetrics are the sales dashboard counters.
type DashboardMetrics struct {
	ActiveTransitions          int             `json:"active_transitions"`
	PendingApprovals           int             `json:"pending_approvals"`
	CompletedTransitions       int             `json:"completed_transitions"`
	FailedTransitions          int             `json:"failed_transitions"`
	ConflictsDetectedToday     int             `json:"conflicts_detected_today"`
	ResolutionsExecutedToday   int             `json:"resolutions_executed_today"`
	RollbacksToday             int             `json:"rollbacks_today"`
	RevenueImpact              decimal.Decimal `json:"revenue_impact"`
	AverageResolutionTimeHours float64         `json:"average_resolution_time_hours"`
}
