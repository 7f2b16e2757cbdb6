package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ConflictSummary is the snapshot of detected conflicts stored on a transition.
type ConflictSummary struct {
	Total         int              `json:"total"`
	RevenueImpact decimal.Decimal  `json:"revenue_impact"`
	RiskScore     int              `json:"risk_score"`
	BySeverity    map[Severity]int `json:"by_severity"`
	Entries       []SummaryEntry   `json:"entries"`
}

// SummaryEntry is one conflict in a summary.
type SummaryEntry struct {
	ConflictType    ConflictType    `json:"conflict_type"`
	Severity        Severity        `json:"severity"`
	FinancialImpact decimal.Decimal `json:"financial_impact"`
	Detail          ConflictDetail  `json:"detail"`
}

// ConflictDetail is a sealed sum type: only BookingDetail, RentalDetail and
// HoldDetail implement it. It is encoded as an object with a "kind" tag.
type ConflictDetail interface {
	Kind() string
	conflictDetail()
}

// Detail kinds.
const (
	DetailKindBooking = "booking"
	DetailKindRental  = "rental"
	DetailKindHold    = "hold"
)

// BookingDetail describes a pending or confirmed booking that has not started.
type BookingDetail struct {
	BookingID  int64     `json:"booking_id"`
	CustomerID int64     `json:"customer_id"`
	Status     string    `json:"status"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// RentalDetail describes an item that is checked out.
type RentalDetail struct {
	BookingID  int64     `json:"booking_id"`
	CustomerID int64     `json:"customer_id"`
	StartDate  time.Time `json:"start_date"`
	DueDate    time.Time `json:"due_date"`
	Overdue    bool      `json:"overdue"`
}

// HoldDetail describes an inventory hold.
type HoldDetail struct {
	HoldID    int64      `json:"hold_id"`
	Reason    string     `json:"reason"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

func (BookingDetail) Kind() string { return DetailKindBooking }
func (RentalDetail) Kind() string  { return DetailKindRental }
func (HoldDetail) Kind() string    { return DetailKindHold }

func (BookingDetail) conflictDetail() {}
func (RentalDetail) conflictDetail()  {}
func (HoldDetail) conflictDetail()    {}

// MarshalJSON encodes the entry with a kind-tagged detail.
func (e SummaryEntry) MarshalJSON() ([]byte, error) {
	detail, err := marshalDetail(e.Detail)
	if err != nil {
		return nil, err
	}
	type entry SummaryEntry
	return json.Marshal(struct {
		entry
		Detail json.RawMessage `json:"detail"`
	}{entry: entry(e), Detail: detail})
}

// UnmarshalJSON decodes the entry, dispatching on the detail's kind tag.
func (e *SummaryEntry) UnmarshalJSON(data []byte) error {
	type entry SummaryEntry
	var raw struct {
		entry
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	detail, err := unmarshalDetail(raw.Detail)
	if err != nil {
		return err
	}
	*e = SummaryEntry(raw.entry)
	e.Detail = detail
	return nil
}

func marshalDetail(d ConflictDetail) ([]byte, error) {
	var payload any
	switch v := d.(type) {
	case nil:
		return []byte("null"), nil
	case BookingDetail:
		payload = struct {
			Kind string `json:"kind"`
			BookingDetail
		}{v.Kind(), v}
	case RentalDetail:
		payload = struct {
			Kind string `json:"kind"`
			RentalDetail
		}{v.Kind(), v}
	case HoldDetail:
		payload = struct {
			Kind string `json:"kind"`
			HoldDetail
		}{v.Kind(), v}
	default:
		return nil, fmt.Errorf("unsupported conflict detail %T", d)
	}
	return json.Marshal(payload)
}

func unmarshalDetail(data json.RawMessage) (ConflictDetail, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding conflict detail: %w", err)
	}

	switch head.Kind {
	case DetailKindBooking:
		var d BookingDetail
		err := json.Unmarshal(data, &d)
		return d, err
	case DetailKindRental:
		var d RentalDetail
		err := json.Unmarshal(data, &d)
		return d, err
	case DetailKindHold:
		var d HoldDetail
		err := json.Unmarshal(data, &d)
		return d, err
	}
	return nil, fmt.Errorf("unknown conflict detail kind %q", head.Kind)
}
