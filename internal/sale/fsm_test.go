package sale

import (
	"testing"

	"github.com/erazemk/izposoja/internal/apperr"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEvents = []Event{
	EventRequireApproval, EventApprove, EventProcess, EventComplete, EventFail, EventReject, EventRollback,
}

func TestNextFollowsTable(t *testing.T) {
	tests := []struct {
		from model.TransitionStatus
		ev   Event
		want model.TransitionStatus
	}{
		{model.TransitionPending, EventRequireApproval, model.TransitionAwaitingApproval},
		{model.TransitionPending, EventProcess, model.TransitionProcessing},
		{model.TransitionPending, EventReject, model.TransitionRejected},
		{model.TransitionAwaitingApproval, EventApprove, model.TransitionApproved},
		{model.TransitionAwaitingApproval, EventReject, model.TransitionRejected},
		{model.TransitionApproved, EventProcess, model.TransitionProcessing},
		{model.TransitionApproved, EventReject, model.TransitionRejected},
		{model.TransitionProcessing, EventComplete, model.TransitionCompleted},
		{model.TransitionProcessing, EventFail, model.TransitionFailed},
		{model.TransitionCompleted, EventRollback, model.TransitionRolledBack},
		{model.TransitionFailed, EventRollback, model.TransitionRolledBack},
	}
	for _, tt := range tests {
		got, err := Next(tt.from, tt.ev)
		require.NoError(t, err, "%s + %s", tt.from, tt.ev)
		assert.Equal(t, tt.want, got, "%s + %s", tt.from, tt.ev)
	}
}

func TestNextRejectsUnlistedMoves(t *testing.T) {
	legal := 0
	for _, from := range model.TransitionStatuses {
		for _, ev := range allEvents {
			_, listed := transitionTable[from][ev]
			_, err := Next(from, ev)
			if listed {
				legal++
				assert.NoError(t, err)
				continue
			}
			require.Error(t, err, "%s + %s should be rejected", from, ev)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.False(t, CanFire(from, ev))
		}
	}
	assert.Equal(t, 11, legal)
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, s := range []model.TransitionStatus{model.TransitionRejected, model.TransitionRolledBack} {
		for _, ev := range allEvents {
			assert.False(t, CanFire(s, ev), "%s + %s", s, ev)
		}
	}
}

func TestCurrentStepKnowsEveryStatus(t *testing.T) {
	for _, s := range model.TransitionStatuses {
		assert.NotEqual(t, "Unknown", currentStep(s), s)
	}
}
