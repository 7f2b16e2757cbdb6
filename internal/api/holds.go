package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// HoldsHandler handles inventory hold endpoints.
type HoldsHandler struct {
	DB *sql.DB
}

type createHoldRequest struct {
	ItemID    int64      `json:"item_id"`
	Reason    string     `json:"reason"`
	HeldUntil *time.Time `json:"held_until"`
}

// List handles GET /api/holds. Pass active=true for unreleased holds only.
func (h *HoldsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var itemID int64
	if v := q.Get("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid item_id")
			return
		}
		itemID = id
	}
	activeOnly := q.Get("active") == "true"

	holds, err := store.ListHolds(r.Context(), h.DB, itemID, activeOnly)
	if err != nil {
		slog.Error("failed to list holds", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list holds")
		return
	}
	if holds == nil {
		holds = []model.InventoryHold{}
	}
	jsonResponse(w, http.StatusOK, holds)
}

// Create handles POST /api/holds.
func (h *HoldsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHoldRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.ItemID <= 0 || req.Reason == "" {
		jsonError(w, http.StatusBadRequest, "item_id and reason required")
		return
	}
	if req.HeldUntil != nil && req.HeldUntil.Before(time.Now()) {
		jsonError(w, http.StatusBadRequest, "held_until must be in the future")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, req.ItemID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	hold, err := store.CreateHold(r.Context(), h.DB, req.ItemID, req.Reason, req.HeldUntil)
	if err != nil {
		slog.Error("failed to create hold", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create hold")
		return
	}

	slog.Info("hold placed", "user", GetClaims(r.Context()).Username, "hold", hold.ID, "item", req.ItemID)
	jsonResponse(w, http.StatusCreated, hold)
}

// Release handles POST /api/holds/{id}/release.
func (h *HoldsHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid hold id")
		return
	}

	hold, err := store.GetHold(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get hold")
		return
	}
	if hold == nil {
		jsonError(w, http.StatusNotFound, "hold not found")
		return
	}

	if _, err := store.ReleaseHold(r.Context(), h.DB, id, time.Now()); err != nil {
		slog.Error("failed to release hold", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to release hold")
		return
	}

	slog.Info("hold released", "user", GetClaims(r.Context()).Username, "hold", id)
	hold, _ = store.GetHold(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, hold)
}
