package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/sale"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	t     *testing.T
	token string // admin token
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, sale.NewService(database, sale.DefaultPolicy()))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	for _, u := range []struct{ name, role string }{
		{"admin", model.RoleAdmin},
		{"staff", model.RoleStaff},
		{"viewer", model.RoleViewer},
	} {
		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
		if _, err := store.CreateUser(ctx, database, u.name, string(hash), u.role); err != nil {
			t.Fatalf("creating %s: %v", u.name, err)
		}
	}

	ts := &testServer{Server: server, t: t}
	ts.token = ts.login("admin")
	return ts
}

func (ts *testServer) login(username string) string {
	ts.t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": "password"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		ts.t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ts.t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		ts.t.Fatal("empty token from login")
	}
	return token
}

// do sends an authenticated request and decodes the response into out when
// out is non-nil. It returns the status code.
func (ts *testServer) do(method, path, token string, body, out any) int {
	ts.t.Helper()
	req, err := authRequest(method, ts.URL+path, token, body)
	if err != nil {
		ts.t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// seedBooking creates an item, a customer and a confirmed booking starting
// in ten days.
func (ts *testServer) seedBooking() (model.Item, model.Booking) {
	ts.t.Helper()

	var item model.Item
	if code := ts.do("POST", "/api/items", ts.token, map[string]any{
		"name": "Kayak", "daily_rate": "25.00",
	}, &item); code != http.StatusCreated {
		ts.t.Fatalf("create item: expected 201, got %d", code)
	}

	var customer model.Customer
	if code := ts.do("POST", "/api/customers", ts.token, map[string]string{
		"name": "Maja", "email": "maja@example.com",
	}, &customer); code != http.StatusCreated {
		ts.t.Fatalf("create customer: expected 201, got %d", code)
	}

	start := time.Now().UTC().AddDate(0, 0, 10).Truncate(time.Hour)
	var booking model.Booking
	if code := ts.do("POST", "/api/bookings", ts.token, map[string]any{
		"item_id":     item.ID,
		"customer_id": customer.ID,
		"start_date":  start,
		"end_date":    start.AddDate(0, 0, 3),
	}, &booking); code != http.StatusCreated {
		ts.t.Fatalf("create booking: expected 201, got %d", code)
	}
	if !booking.TotalAmount.Equal(decimal.NewFromInt(75)) {
		ts.t.Errorf("expected total 75, got %s", booking.TotalAmount)
	}

	if code := ts.do("PUT", fmt.Sprintf("/api/bookings/%d/status", booking.ID), ts.token,
		map[string]string{"status": model.BookingStatusConfirmed}, &booking); code != http.StatusOK {
		ts.t.Fatalf("confirm booking: expected 200, got %d", code)
	}
	return item, booking
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login("staff")

	if code := ts.do("GET", "/api/items", token, nil, nil); code != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", code)
	}
	if code := ts.do("POST", "/api/auth/logout", token, nil, nil); code != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", code)
	}
	if code := ts.do("GET", "/api/items", token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", code)
	}
}

func TestMissingToken(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/sales/transitions")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestItemsAPIFlow(t *testing.T) {
	ts := setupTestServer(t)

	var item model.Item
	code := ts.do("POST", "/api/items", ts.token, map[string]any{
		"name":        "Canoe",
		"description": "Two-seater",
		"daily_rate":  "40",
	}, &item)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if !item.IsRentable || item.IsSaleable {
		t.Errorf("new item should be rentable and not saleable: %+v", item)
	}

	var items []model.Item
	if code := ts.do("GET", "/api/items", ts.token, nil, &items); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}

	if code := ts.do("PUT", fmt.Sprintf("/api/items/%d", item.ID), ts.token, map[string]any{
		"name": "Canoe", "status": "broken",
	}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", code)
	}

	if code := ts.do("DELETE", fmt.Sprintf("/api/items/%d", item.ID), ts.token, nil, nil); code != http.StatusOK {
		t.Fatalf("expected 200 from delete, got %d", code)
	}
	if code := ts.do("GET", fmt.Sprintf("/api/items/%d", item.ID), ts.token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for deleted item, got %d", code)
	}
}

func TestPermissions(t *testing.T) {
	ts := setupTestServer(t)
	viewer := ts.login("viewer")
	staff := ts.login("staff")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"viewer lists items", "GET", "/api/items", viewer, nil, http.StatusOK},
		{"viewer creates item", "POST", "/api/items", viewer, map[string]string{"name": "x"}, http.StatusForbidden},
		{"staff creates item", "POST", "/api/items", staff, map[string]string{"name": "x"}, http.StatusForbidden},
		{"staff lists users", "GET", "/api/users", staff, nil, http.StatusForbidden},
		{"staff approves", "POST", "/api/sales/transitions/1/approve", staff, map[string]string{}, http.StatusForbidden},
		{"viewer initiates", "POST", "/api/sales/items/1/initiate-sale", viewer, map[string]string{}, http.StatusForbidden},
		{"viewer reads dashboard", "GET", "/api/sales/metrics/dashboard", viewer, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := ts.do(tt.method, tt.path, tt.token, tt.body, nil); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestBookingOverlapRejected(t *testing.T) {
	ts := setupTestServer(t)
	item, booking := ts.seedBooking()

	code := ts.do("POST", "/api/bookings", ts.token, map[string]any{
		"item_id":     item.ID,
		"customer_id": booking.CustomerID,
		"start_date":  booking.StartDate.AddDate(0, 0, 1),
		"end_date":    booking.EndDate.AddDate(0, 0, 1),
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("expected 409 for overlapping booking, got %d", code)
	}
}

func TestBookingRejectedDuringSale(t *testing.T) {
	ts := setupTestServer(t)
	item, booking := ts.seedBooking()

	if code := ts.do("POST", fmt.Sprintf("/api/sales/items/%d/initiate-sale", item.ID), ts.token,
		map[string]any{}, nil); code != http.StatusCreated {
		t.Fatalf("initiate: expected 201, got %d", code)
	}

	var errBody map[string]string
	code := ts.do("POST", "/api/bookings", ts.token, map[string]any{
		"item_id":     item.ID,
		"customer_id": booking.CustomerID,
		"start_date":  booking.EndDate.AddDate(0, 0, 5),
		"end_date":    booking.EndDate.AddDate(0, 0, 7),
	}, &errBody)
	if code != http.StatusConflict {
		t.Errorf("expected 409 while a sale is pending, got %d", code)
	}
	if errBody["error"] != store.ErrSaleInProgress.Error() {
		t.Errorf("unexpected error message %q", errBody["error"])
	}
}

func TestSaleTransitionFlow(t *testing.T) {
	ts := setupTestServer(t)
	item, booking := ts.seedBooking()

	var eligibility sale.SaleEligibilityResponse
	if code := ts.do("GET", fmt.Sprintf("/api/sales/items/%d/sale-eligibility", item.ID), ts.token, nil, &eligibility); code != http.StatusOK {
		t.Fatalf("eligibility: expected 200, got %d", code)
	}
	if !eligibility.Eligible || eligibility.ConflictSummary.Total != 1 {
		t.Fatalf("expected eligible with one conflict, got %+v", eligibility)
	}

	var initiated sale.SaleTransitionResponse
	if code := ts.do("POST", fmt.Sprintf("/api/sales/items/%d/initiate-sale", item.ID), ts.token,
		map[string]any{"sale_price": "350.00"}, &initiated); code != http.StatusCreated {
		t.Fatalf("initiate: expected 201, got %d", code)
	}
	if initiated.Status != model.TransitionPending || initiated.ConflictsFound != 1 {
		t.Fatalf("expected pending transition with one conflict, got %+v", initiated)
	}

	// A second transition for the same item is refused while the first is open.
	if code := ts.do("POST", fmt.Sprintf("/api/sales/items/%d/initiate-sale", item.ID), ts.token,
		map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("second initiate: expected 400, got %d", code)
	}

	var affected []sale.AffectedBooking
	if code := ts.do("GET", fmt.Sprintf("/api/sales/transitions/%d/affected-bookings", initiated.TransitionID), ts.token, nil, &affected); code != http.StatusOK {
		t.Fatalf("affected bookings: expected 200, got %d", code)
	}
	if len(affected) != 1 || affected[0].BookingID != booking.ID {
		t.Fatalf("expected booking %d to be affected, got %+v", booking.ID, affected)
	}

	var result sale.TransitionResult
	if code := ts.do("POST", fmt.Sprintf("/api/sales/transitions/%d/confirm", initiated.TransitionID), ts.token, map[string]any{
		"confirmed": true,
		"resolution_overrides": map[string]string{
			fmt.Sprint(affected[0].ConflictID): string(model.ActionCancelBooking),
		},
	}, &result); code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", code)
	}
	if !result.Success || result.Status != model.TransitionCompleted {
		t.Fatalf("expected completed transition, got %+v", result)
	}
	if result.ConflictsResolved != 1 || result.CustomersNotified != 1 {
		t.Errorf("expected 1 resolved and 1 notified, got %d and %d", result.ConflictsResolved, result.CustomersNotified)
	}

	var got model.Booking
	ts.do("GET", fmt.Sprintf("/api/bookings/%d", booking.ID), ts.token, nil, &got)
	if got.Status != model.BookingStatusCancelled {
		t.Errorf("expected booking cancelled, got %s", got.Status)
	}

	var status sale.TransitionStatusResponse
	ts.do("GET", fmt.Sprintf("/api/sales/transitions/%d/status", initiated.TransitionID), ts.token, nil, &status)
	if status.ProgressPercentage != 100 || !status.CanRollback {
		t.Errorf("expected 100%% progress and rollback available, got %+v", status)
	}

	var rollback sale.RollbackResult
	if code := ts.do("POST", fmt.Sprintf("/api/sales/transitions/%d/rollback", initiated.TransitionID), ts.token,
		map[string]string{"reason": "buyer backed out"}, &rollback); code != http.StatusOK {
		t.Fatalf("rollback: expected 200, got %d", code)
	}
	if !rollback.Success || rollback.BookingsRestored != 1 {
		t.Errorf("expected one restored booking, got %+v", rollback)
	}

	ts.do("GET", fmt.Sprintf("/api/bookings/%d", booking.ID), ts.token, nil, &got)
	if got.Status != model.BookingStatusConfirmed {
		t.Errorf("expected booking confirmed again, got %s", got.Status)
	}

	var errBody map[string]string
	if code := ts.do("POST", fmt.Sprintf("/api/sales/transitions/%d/rollback", initiated.TransitionID), ts.token,
		map[string]string{"reason": "again"}, &errBody); code != http.StatusBadRequest {
		t.Errorf("second rollback: expected 400, got %d", code)
	}
	if errBody["error"] != "No checkpoint available" {
		t.Errorf("unexpected error %q", errBody["error"])
	}

	var page sale.PaginatedTransitions
	ts.do("GET", "/api/sales/transitions?status=rolled_back", ts.token, nil, &page)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("expected one rolled back transition, got %+v", page)
	}
}

func TestRejectNeedsReason(t *testing.T) {
	ts := setupTestServer(t)

	var errBody map[string]string
	code := ts.do("POST", "/api/sales/transitions/1/reject", ts.token,
		map[string]string{"rejection_reason": "too soon"}, &errBody)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for short reason, got %d", code)
	}
	if errBody["error"] == "" {
		t.Error("expected an error message")
	}

	// The minimum counts characters, not bytes.
	code = ts.do("POST", "/api/sales/transitions/1/reject", ts.token,
		map[string]string{"rejection_reason": "ččččč"}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for five multibyte characters, got %d", code)
	}
}

func TestSaleErrorsMapToStatus(t *testing.T) {
	ts := setupTestServer(t)

	if code := ts.do("GET", "/api/sales/items/999/sale-eligibility", ts.token, nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown item: expected 404, got %d", code)
	}
	if code := ts.do("GET", "/api/sales/transitions/999/status", ts.token, nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown transition: expected 404, got %d", code)
	}
	if code := ts.do("GET", "/api/sales/transitions?status=archived", ts.token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("unknown status filter: expected 400, got %d", code)
	}
	if code := ts.do("POST", "/api/sales/notifications/999/respond", ts.token,
		map[string]string{"response": "accept"}, nil); code != http.StatusNotFound {
		t.Errorf("unknown notification: expected 404, got %d", code)
	}
}
