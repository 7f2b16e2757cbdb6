package api

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/sale"
)

// SalesHandler exposes the sale transition workflow.
type SalesHandler struct {
	Sales *sale.Service
}

type rollbackRequest struct {
	Reason string `json:"reason"`
}

type approveRequest struct {
	Notes               string                           `json:"notes"`
	ResolutionOverrides map[int64]model.ResolutionAction `json:"resolution_overrides"`
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type respondRequest struct {
	Response model.CustomerResponse `json:"response"`
}

// Eligibility handles GET /api/sales/items/{id}/sale-eligibility.
func (h *SalesHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	resp, err := h.Sales.CheckSaleEligibility(r.Context(), id, actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Initiate handles POST /api/sales/items/{id}/initiate-sale.
func (h *SalesHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req sale.InitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Sales.InitiateSaleTransition(r.Context(), id, req, actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, resp)
}

// Confirm handles POST /api/sales/transitions/{id}/confirm. A processing
// failure is still a 200; the body carries success=false and the errors.
func (h *SalesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	var req sale.Confirmation
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Sales.ConfirmTransition(r.Context(), id, req, actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Status handles GET /api/sales/transitions/{id}/status.
func (h *SalesHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	resp, err := h.Sales.GetTransitionStatus(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Rollback handles POST /api/sales/transitions/{id}/rollback.
func (h *SalesHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	var req rollbackRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Sales.RollbackTransition(r.Context(), id, req.Reason, actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// AffectedBookings handles GET /api/sales/transitions/{id}/affected-bookings.
func (h *SalesHandler) AffectedBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	bookings, err := h.Sales.GetAffectedBookings(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []sale.AffectedBooking{}
	}
	jsonResponse(w, http.StatusOK, bookings)
}

// List handles GET /api/sales/transitions.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sale.TransitionFilter{Status: model.TransitionStatus(q.Get("status"))}

	ints := map[string]*int{"page": &filter.Page, "page_size": &filter.PageSize}
	for key, dst := range ints {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				jsonError(w, http.StatusBadRequest, "invalid "+key)
				return
			}
			*dst = n
		}
	}
	if v := q.Get("item_id"); v != "" {
		itemID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid item_id")
			return
		}
		filter.ItemID = itemID
	}
	if v := q.Get("requires_approval"); v != "" {
		required, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid requires_approval")
			return
		}
		filter.RequiresApproval = &required
	}

	page, err := h.Sales.ListTransitions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Dashboard handles GET /api/sales/metrics/dashboard.
func (h *SalesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.Sales.DashboardMetrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, metrics)
}

// Approve handles POST /api/sales/transitions/{id}/approve. The transition is
// processed right after it is approved.
func (h *SalesHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Sales.ApproveTransition(r.Context(), id, req.Notes, req.ResolutionOverrides, actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Reject handles POST /api/sales/transitions/{id}/reject.
func (h *SalesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid transition id")
		return
	}

	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.RejectionReason)) < sale.MinRejectionReasonLength {
		jsonError(w, http.StatusBadRequest, "rejection_reason must be at least "+
			strconv.Itoa(sale.MinRejectionReasonLength)+" characters")
		return
	}

	t, err := h.Sales.RejectTransition(r.Context(), id, req.RejectionReason, actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"message":    "transition rejected",
		"transition": t,
	})
}

// RespondToNotification handles POST /api/sales/notifications/{id}/respond.
func (h *SalesHandler) RespondToNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Response.Valid() {
		jsonError(w, http.StatusBadRequest, "response must be accept, reject or request_alternative")
		return
	}

	n, err := h.Sales.RespondToNotification(r.Context(), id, req.Response)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, n)
}
