package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictSummaryRoundTrip(t *testing.T) {
	start := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	until := start.Add(48 * time.Hour)

	in := ConflictSummary{
		Total:         3,
		RevenueImpact: decimal.RequireFromString("240.50"),
		RiskScore:     50,
		BySeverity:    map[Severity]int{SeverityHigh: 1, SeverityMedium: 2},
		Entries: []SummaryEntry{
			{
				ConflictType:    ConflictFutureBooking,
				Severity:        SeverityMedium,
				FinancialImpact: decimal.RequireFromString("120.25"),
				Detail:          BookingDetail{BookingID: 7, CustomerID: 3, Status: BookingStatusConfirmed, StartDate: start, EndDate: start.Add(24 * time.Hour)},
			},
			{
				ConflictType:    ConflictActiveRental,
				Severity:        SeverityHigh,
				FinancialImpact: decimal.RequireFromString("120.25"),
				Detail:          RentalDetail{BookingID: 8, CustomerID: 4, StartDate: start.Add(-72 * time.Hour), DueDate: start},
			},
			{
				ConflictType: ConflictInventoryHold,
				Severity:     SeverityMedium,
				Detail:       HoldDetail{HoldID: 2, Reason: "inspection", HeldUntil: &until},
			},
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"rental"`)

	var out ConflictSummary
	require.NoError(t, json.Unmarshal(data, &out))

	require.Len(t, out.Entries, 3)
	assert.Equal(t, in.Entries[0].Detail, out.Entries[0].Detail)
	assert.Equal(t, in.Entries[1].Detail, out.Entries[1].Detail)

	hold, ok := out.Entries[2].Detail.(HoldDetail)
	require.True(t, ok, "expected HoldDetail, got %T", out.Entries[2].Detail)
	assert.Equal(t, "inspection", hold.Reason)
	assert.True(t, hold.HeldUntil.Equal(until))
	assert.True(t, in.RevenueImpact.Equal(out.RevenueImpact))
	assert.Equal(t, 2, out.BySeverity[SeverityMedium])
}

func TestConflictSummaryRejectsUnknownKind(t *testing.T) {
	data := []byte(`{"conflict_type":"future_booking","severity":"low","financial_impact":"0","detail":{"kind":"voucher"}}`)

	var entry SummaryEntry
	err := json.Unmarshal(data, &entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voucher")
}

func TestConflictSummaryNullDetail(t *testing.T) {
	data, err := json.Marshal(SummaryEntry{ConflictType: ConflictPendingBooking, Severity: SeverityLow})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"detail":null`)

	var entry SummaryEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Nil(t, entry.Detail)
}

func TestTransitionStatusActive(t *testing.T) {
	active := map[TransitionStatus]bool{
		TransitionPending:          true,
		TransitionAwaitingApproval: true,
		TransitionApproved:         true,
		TransitionProcessing:       true,
	}
	for _, s := range TransitionStatuses {
		assert.Equal(t, active[s], s.Active(), "status %s", s)
		assert.True(t, s.Valid())
	}
	assert.False(t, TransitionStatus("archived").Valid())
}

func TestResolutionActionAppliesTo(t *testing.T) {
	assert.True(t, ActionCancelBooking.AppliesTo(EntityBooking))
	assert.False(t, ActionCancelBooking.AppliesTo(EntityHold))
	assert.True(t, ActionReleaseHold.AppliesTo(EntityHold))
	assert.False(t, ActionReleaseHold.AppliesTo(EntityBooking))
	assert.False(t, ResolutionAction("refund").Valid())
}

func TestBookingOverlaps(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 11, d, 0, 0, 0, 0, time.UTC) }
	b := Booking{StartDate: day(10), EndDate: day(12)}

	assert.True(t, b.Overlaps(day(11), day(13)))
	assert.True(t, b.Overlaps(day(9), day(11)))
	assert.False(t, b.Overlaps(day(12), day(14)), "ranges are half-open")
	assert.False(t, b.Overlaps(day(8), day(10)))
}
