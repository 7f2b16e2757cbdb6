package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type itemRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
	IsRentable  *bool           `json:"is_rentable"`
}

func (req itemRequest) input() store.ItemInput {
	in := store.ItemInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		DailyRate:   req.DailyRate,
		IsRentable:  true,
	}
	if req.IsRentable != nil {
		in.IsRentable = *req.IsRentable
	}
	if in.Status == "" {
		in.Status = model.ItemStatusActive
	}
	return in
}

// validate returns a message describing the first invalid field.
func (req itemRequest) validate() string {
	if req.Name == "" {
		return "name required"
	}
	if req.Status != "" && !model.ValidItemStatus(req.Status) {
		return "invalid status"
	}
	if req.DailyRate.IsNegative() {
		return "daily_rate must not be negative"
	}
	return ""
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ItemFilter{Status: r.URL.Query().Get("status")}
	if v := r.URL.Query().Get("saleable"); v != "" {
		saleable, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid saleable filter")
			return
		}
		filter.Saleable = &saleable
	}

	items, err := store.ListItems(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req.input())
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item created", "user", GetClaims(r.Context()).Username, "item", item.ID, "name", item.Name)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}. The item comes with its open bookings and
// unreleased holds.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	bookings, err := store.ListOpenBookings(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to list item bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item bookings")
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	holds, err := store.ListHolds(r.Context(), h.DB, id, true)
	if err != nil {
		slog.Error("failed to list item holds", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item holds")
		return
	}
	if holds == nil {
		holds = []model.InventoryHold{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"item":     item,
		"bookings": bookings,
		"holds":    holds,
	})
}

// Update handles PUT /api/items/{id}. Sale fields are not editable here.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if existing == nil || existing.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if existing.IsSaleable && req.IsRentable != nil && *req.IsRentable {
		jsonError(w, http.StatusBadRequest, "item is listed for sale; roll back the sale transition to rent it again")
		return
	}

	in := req.input()
	if req.IsRentable == nil {
		in.IsRentable = existing.IsRentable
	}
	if err := store.UpdateItem(r.Context(), h.DB, id, in); err != nil {
		slog.Error("failed to update item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	item, _ := store.GetItem(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	open, err := store.ListOpenBookings(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check item bookings")
		return
	}
	if len(open) > 0 {
		jsonError(w, http.StatusBadRequest, "item still has open bookings")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("item deleted", "user", GetClaims(r.Context()).Username, "item", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
