package sale

import (
	"github.com/erazemk/izposoja/internal/apperr"
	"github.com/erazemk/izposoja/internal/model"
)

// Event drives a transition from one status to the next.
type Event string

// Events.
const (
	EventRequireApproval Event = "require_approval"
	EventApprove         Event = "approve"
	EventProcess         Event = "process"
	EventComplete        Event = "complete"
	EventFail            Event = "fail"
	EventReject          Event = "reject"
	EventRollback        Event = "rollback"
)

// transitionTable lists every legal (status, event) pair. Anything missing
// is rejected.
var transitionTable = map[model.TransitionStatus]map[Event]model.TransitionStatus{
	model.TransitionPending: {
		EventRequireApproval: model.TransitionAwaitingApproval,
		EventProcess:         model.TransitionProcessing,
		EventReject:          model.TransitionRejected,
	},
	model.TransitionAwaitingApproval: {
		EventApprove: model.TransitionApproved,
		EventReject:  model.TransitionRejected,
	},
	model.TransitionApproved: {
		EventProcess: model.TransitionProcessing,
		EventReject:  model.TransitionRejected,
	},
	model.TransitionProcessing: {
		EventComplete: model.TransitionCompleted,
		EventFail:     model.TransitionFailed,
	},
	model.TransitionCompleted: {
		EventRollback: model.TransitionRolledBack,
	},
	model.TransitionFailed: {
		EventRollback: model.TransitionRolledBack,
	},
}

// Next returns the status that ev leads to from, or a validation error if
// the move is not allowed.
func Next(from model.TransitionStatus, ev Event) (model.TransitionStatus, error) {
	to, ok := transitionTable[from][ev]
	if !ok {
		return "", apperr.Validation("cannot %s a transition in status %s", ev, from)
	}
	return to, nil
}

// CanFire reports whether ev is allowed from status.
func CanFire(from model.TransitionStatus, ev Event) bool {
	_, ok := transitionTable[from][ev]
	return ok
}

// currentStep describes what a transition in status is waiting for.
func currentStep(status model.TransitionStatus) string {
	switch status {
	case model.TransitionPending:
		return "Review conflicts, choose resolutions and confirm"
	case model.TransitionAwaitingApproval:
		return "Waiting for manager approval"
	case model.TransitionApproved:
		return "Approved, ready to resolve conflicts"
	case model.TransitionProcessing:
		return "Resolving conflicts"
	case model.TransitionCompleted:
		return "Item listed for sale"
	case model.TransitionRejected:
		return "Transition rejected"
	case model.TransitionFailed:
		return "Processing failed, roll back to restore the previous state"
	case model.TransitionRolledBack:
		return "Transition rolled back"
	}
	return "Unknown"
}
