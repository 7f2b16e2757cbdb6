package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// CustomersHandler handles customer CRUD endpoints.
type CustomersHandler struct {
	DB *sql.DB
}

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// List handles GET /api/customers.
func (h *CustomersHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := store.ListCustomers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list customers", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list customers")
		return
	}
	if customers == nil {
		customers = []model.Customer{}
	}
	jsonResponse(w, http.StatusOK, customers)
}

// Create handles POST /api/customers.
func (h *CustomersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	customer, err := store.CreateCustomer(r.Context(), h.DB, req.Name, req.Email, req.Phone)
	if err != nil {
		slog.Error("failed to create customer", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create customer")
		return
	}

	slog.Info("customer created", "user", GetClaims(r.Context()).Username, "customer", customer.ID)
	jsonResponse(w, http.StatusCreated, customer)
}

// Get handles GET /api/customers/{id}. The customer comes with their bookings.
func (h *CustomersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	customer, err := store.GetCustomer(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get customer", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get customer")
		return
	}
	if customer == nil || customer.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "customer not found")
		return
	}

	bookings, err := store.ListBookings(r.Context(), h.DB, store.BookingFilter{CustomerID: id})
	if err != nil {
		slog.Error("failed to list customer bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get customer bookings")
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"customer": customer,
		"bookings": bookings,
	})
}

// Update handles PUT /api/customers/{id}.
func (h *CustomersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateCustomer(r.Context(), h.DB, id, req.Name, req.Email, req.Phone); err != nil {
		slog.Error("failed to update customer", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update customer")
		return
	}

	customer, err := store.GetCustomer(r.Context(), h.DB, id)
	if err != nil || customer == nil {
		jsonError(w, http.StatusNotFound, "customer not found")
		return
	}
	jsonResponse(w, http.StatusOK, customer)
}

// Delete handles DELETE /api/customers/{id}.
func (h *CustomersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	if err := store.DeleteCustomer(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to delete customer", "customer", id, "error", err)
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("customer deleted", "user", GetClaims(r.Context()).Username, "customer", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "customer deleted"})
}
