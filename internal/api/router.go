package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/sale"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, sales *sale.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	customersHandler := &CustomersHandler{DB: db}
	bookingsHandler := &BookingsHandler{DB: db}
	holdsHandler := &HoldsHandler{DB: db}
	salesHandler := &SalesHandler{Sales: sales}

	authMW := AuthMiddleware(jwtSecret, db)
	with := func(perm model.Permission, h http.HandlerFunc) http.Handler {
		return authMW(RequirePermission(perm)(h))
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", with(model.PermUsersManage, usersHandler.List))
	mux.Handle("POST /api/users", with(model.PermUsersManage, usersHandler.Create))
	mux.Handle("GET /api/users/{id}", with(model.PermUsersManage, usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", with(model.PermUsersManage, usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", with(model.PermUsersManage, usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", with(model.PermUsersManage, usersHandler.Delete))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/items", with(model.PermCatalogView, itemsHandler.List))
	mux.Handle("POST /api/items", with(model.PermCatalogManage, itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", with(model.PermCatalogView, itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", with(model.PermCatalogManage, itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", with(model.PermCatalogManage, itemsHandler.Delete))

	// Customers: read (all roles), write (manager+).
	mux.Handle("GET /api/customers", with(model.PermCatalogView, customersHandler.List))
	mux.Handle("POST /api/customers", with(model.PermCatalogManage, customersHandler.Create))
	mux.Handle("GET /api/customers/{id}", with(model.PermCatalogView, customersHandler.Get))
	mux.Handle("PUT /api/customers/{id}", with(model.PermCatalogManage, customersHandler.Update))
	mux.Handle("DELETE /api/customers/{id}", with(model.PermCatalogManage, customersHandler.Delete))

	// Bookings: read (all roles), write (staff+).
	mux.Handle("GET /api/bookings", with(model.PermCatalogView, bookingsHandler.List))
	mux.Handle("POST /api/bookings", with(model.PermCatalogBook, bookingsHandler.Create))
	mux.Handle("GET /api/bookings/{id}", with(model.PermCatalogView, bookingsHandler.Get))
	mux.Handle("PUT /api/bookings/{id}/status", with(model.PermCatalogBook, bookingsHandler.UpdateStatus))

	// Holds: read (all roles), write (manager+).
	mux.Handle("GET /api/holds", with(model.PermCatalogView, holdsHandler.List))
	mux.Handle("POST /api/holds", with(model.PermCatalogManage, holdsHandler.Create))
	mux.Handle("POST /api/holds/{id}/release", with(model.PermCatalogManage, holdsHandler.Release))

	// Sales. Mutating endpoints check the actor's permissions in the service,
	// except approve/reject which are gated here as well.
	mux.Handle("GET /api/sales/items/{id}/sale-eligibility", with(model.PermSalesView, salesHandler.Eligibility))
	mux.Handle("POST /api/sales/items/{id}/initiate-sale", authMW(http.HandlerFunc(salesHandler.Initiate)))
	mux.Handle("GET /api/sales/transitions", with(model.PermSalesView, salesHandler.List))
	mux.Handle("GET /api/sales/transitions/{id}/status", with(model.PermSalesView, salesHandler.Status))
	mux.Handle("GET /api/sales/transitions/{id}/affected-bookings", with(model.PermSalesView, salesHandler.AffectedBookings))
	mux.Handle("POST /api/sales/transitions/{id}/confirm", authMW(http.HandlerFunc(salesHandler.Confirm)))
	mux.Handle("POST /api/sales/transitions/{id}/rollback", authMW(http.HandlerFunc(salesHandler.Rollback)))
	mux.Handle("POST /api/sales/transitions/{id}/approve", with(model.PermSalesApprove, salesHandler.Approve))
	mux.Handle("POST /api/sales/transitions/{id}/reject", with(model.PermSalesApprove, salesHandler.Reject))
	mux.Handle("GET /api/sales/metrics/dashboard", with(model.PermSalesView, salesHandler.Dashboard))
	mux.Handle("POST /api/sales/notifications/{id}/respond", authMW(http.HandlerFunc(salesHandler.RespondToNotification)))

	return mux
}
