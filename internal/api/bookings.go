package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// BookingsHandler handles booking endpoints.
type BookingsHandler struct {
	DB *sql.DB
}

type createBookingRequest struct {
	ItemID      int64               `json:"item_id"`
	CustomerID  int64               `json:"customer_id"`
	StartDate   time.Time           `json:"start_date"`
	EndDate     time.Time           `json:"end_date"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

type bookingStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// List handles GET /api/bookings.
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.BookingFilter{Status: q.Get("status")}

	for key, dst := range map[string]*int64{"item_id": &filter.ItemID, "customer_id": &filter.CustomerID} {
		if v := q.Get(key); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "invalid "+key)
				return
			}
			*dst = id
		}
	}

	bookings, err := store.ListBookings(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	jsonResponse(w, http.StatusOK, bookings)
}

// Create handles POST /api/bookings. Without an explicit total the booking
// is charged the item's daily rate for every started day.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ItemID <= 0 || req.CustomerID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id and customer_id required")
		return
	}
	if req.StartDate.IsZero() || !req.StartDate.Before(req.EndDate) {
		jsonError(w, http.StatusBadRequest, "end_date must be after start_date")
		return
	}
	if req.TotalAmount.Valid && req.TotalAmount.Decimal.IsNegative() {
		jsonError(w, http.StatusBadRequest, "total_amount must not be negative")
		return
	}

	ctx := r.Context()
	item, err := store.GetItem(ctx, h.DB, req.ItemID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if !item.IsRentable || item.Status != model.ItemStatusActive {
		jsonError(w, http.StatusBadRequest, "item is not available for rent")
		return
	}

	customer, err := store.GetCustomer(ctx, h.DB, req.CustomerID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get customer")
		return
	}
	if customer == nil || customer.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "customer not found")
		return
	}

	holds, err := store.ListHolds(ctx, h.DB, item.ID, true)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check holds")
		return
	}
	for _, hold := range holds {
		if hold.ActiveAt(req.StartDate) {
			jsonError(w, http.StatusConflict, "item is on hold: "+hold.Reason)
			return
		}
	}

	total := req.TotalAmount.Decimal
	if !req.TotalAmount.Valid {
		days := math.Ceil(req.EndDate.Sub(req.StartDate).Hours() / 24)
		total = item.DailyRate.Mul(decimal.NewFromFloat(days))
	}

	booking, err := store.CreateBooking(ctx, h.DB, item.ID, customer.ID, req.StartDate, req.EndDate, total)
	if errors.Is(err, store.ErrSlotTaken) || errors.Is(err, store.ErrSaleInProgress) {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to create booking", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create booking")
		return
	}

	slog.Info("booking created", "user", GetClaims(ctx).Username, "booking", booking.ID,
		"item", item.ID, "customer", customer.ID)
	jsonResponse(w, http.StatusCreated, booking)
}

// Get handles GET /api/bookings/{id}.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := store.GetBooking(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get booking", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get booking")
		return
	}
	if booking == nil {
		jsonError(w, http.StatusNotFound, "booking not found")
		return
	}
	jsonResponse(w, http.StatusOK, booking)
}

// UpdateStatus handles PUT /api/bookings/{id}/status.
func (h *BookingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req bookingStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	booking, err := store.GetBooking(ctx, h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get booking")
		return
	}
	if booking == nil {
		jsonError(w, http.StatusNotFound, "booking not found")
		return
	}

	if !model.CanMoveBooking(booking.Status, req.Status) {
		jsonError(w, http.StatusBadRequest, "cannot move booking from "+booking.Status+" to "+req.Status)
		return
	}

	if req.Status == model.BookingStatusCancelled {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "Cancelled by staff"
		}
		var cancelled bool
		cancelled, err = store.CancelBooking(ctx, h.DB, id, reason, time.Now())
		if err == nil && !cancelled {
			jsonError(w, http.StatusConflict, "booking is no longer open")
			return
		}
	} else {
		err = store.SetBookingStatus(ctx, h.DB, id, req.Status)
	}
	if err != nil {
		slog.Error("failed to update booking status", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update booking")
		return
	}

	slog.Info("booking status changed", "user", GetClaims(ctx).Username, "booking", id,
		"from", booking.Status, "to", req.Status)

	booking, _ = store.GetBooking(ctx, h.DB, id)
	jsonResponse(w, http.StatusOK, booking)
}
