package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fleetdesk/internal/config"
	"fleetdesk/internal/database"
	"fleetdesk/internal/events"
	"fleetdesk/internal/export"
	"fleetdesk/internal/models"
	"fleetdesk/internal/service"

	"github.com/rs/zerolog"
)

type stubContracts struct {
	nextID string
	err    error
}

func (s *stubContracts) CreateContract(ctx context.Context, req models.ContractRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.nextID == "" {
		return "ctr-1", nil
	}
	return s.nextID, nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	err = db.SeedFleet(context.Background(),
		[]models.Car{
			{ID: "car-1", Make: "Toyota", Model: "Corolla", Year: 2023, Plate: "AB123CD", DailyRateCents: 4500, IsActive: true},
			{ID: "car-2", Make: "Skoda", Model: "Octavia", Year: 2022, Plate: "EF456GH", DailyRateCents: 5200, IsActive: true},
		},
		[]models.Customer{
			{ID: "cust-1", FullName: "Test Customer", Email: "one@example.com", IsActive: true},
			{ID: "cust-2", FullName: "Other Customer", Email: "two@example.com", IsActive: true},
		},
	)
	if err != nil {
		t.Fatalf("seed fleet: %v", err)
	}
	return db
}

func newTestServer(t *testing.T, db *database.DB) *httptest.Server {
	t.Helper()
	logger := zerolog.New(io.Discard)
	svc := service.NewBookingService(
		db, nil, &stubContracts{}, events.NewEventBus(),
		48*time.Hour, 365, 5*time.Minute, &logger,
	)
	exporter := export.NewExcelExporter(t.TempDir(), &logger)

	cfg := config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}
	server := NewHTTPServer(cfg, svc, db, exporter, &logger)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func createRequestBody(carID, customerID string, startOffset, endOffset int) map[string]any {
	return map[string]any{
		"customer_id":      customerID,
		"car_id":           carID,
		"start_date":       futureDate(startOffset),
		"end_date":         futureDate(endOffset),
		"pickup_location":  "Downtown",
		"dropoff_location": "Airport",
	}
}

func TestCreateBookingHTTP(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}

	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if booking.Status != models.StatusPending {
		t.Fatalf("expected PENDING, got %s", booking.Status)
	}
	year := time.Now().Year()
	if booking.BookingReference != fmt.Sprintf("BKG-%d-00001", year) {
		t.Fatalf("unexpected reference %s", booking.BookingReference)
	}
	if booking.TotalCents != 4*4500 {
		t.Fatalf("expected total %d, got %d", 4*4500, booking.TotalCents)
	}
	if booking.ExpiresAt.IsZero() {
		t.Fatalf("expected expires_at to be set")
	}
}

func TestCreateBookingOverlapConflict(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create failed: %d %s", resp.StatusCode, raw)
	}

	// Overlapping window on the same car conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-2", 12, 16), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for overlap, got %d", resp.StatusCode)
	}

	// Intervals are closed: a booking starting the day the other ends
	// still conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-2", 14, 18), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for boundary touch, got %d", resp.StatusCode)
	}

	// A different car is free.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-2", "cust-2", 12, 16), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for other car, got %d", resp.StatusCode)
	}

	// A disjoint later window on the same car is free.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-2", 15, 18), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for disjoint window, got %d", resp.StatusCode)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	t.Run("StartAfterEnd", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
			createRequestBody("car-1", "cust-1", 14, 10), nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("UnknownCar", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
			createRequestBody("car-missing", "cust-1", 10, 14), nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
			createRequestBody("car-1", "cust-missing", 10, 14), nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("BadDateFormat", func(t *testing.T) {
		body := createRequestBody("car-1", "cust-1", 10, 14)
		body["start_date"] = "10.09.2026"
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestBookingLifecycleHTTP(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}
	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Convert before confirm is rejected with a pointed message.
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/convert", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for early convert, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(raw), "must be confirmed") {
		t.Fatalf("expected must-be-confirmed message, got %s", raw)
	}

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/confirm", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm failed: %d %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if booking.Status != models.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", booking.Status)
	}

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/convert", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("convert failed: %d %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if booking.Status != models.StatusConverted {
		t.Fatalf("expected CONVERTED, got %s", booking.Status)
	}
	if booking.ContractID == "" {
		t.Fatalf("expected contract id to be set")
	}

	// Terminal status cannot be cancelled.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/cancel",
		map[string]string{"reason": "too late"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for cancel after convert, got %d", resp.StatusCode)
	}
}

func TestCancelThenConfirmHTTP(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}
	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/cancel", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel failed: %d %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if booking.CancellationReason != models.DefaultCancellationReason {
		t.Fatalf("expected default reason, got %q", booking.CancellationReason)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/confirm", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 confirming cancelled booking, got %d", resp.StatusCode)
	}

	// The car is free again after cancellation.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-2", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected car to be free after cancel, got %d", resp.StatusCode)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/does-not-exist", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListBookingsPagination(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	for i := 0; i < 3; i++ {
		resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
			createRequestBody("car-1", "cust-1", 10+i*10, 14+i*10), nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d failed: %d %s", i, resp.StatusCode, raw)
		}
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings?page=1&limit=2", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list failed: %d %s", resp.StatusCode, raw)
	}

	var page models.BookingPage
	if err := json.Unmarshal(raw, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected total=3, got %d", page.Total)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page.Data))
	}
	if page.Pages != 2 {
		t.Fatalf("expected pages=2, got %d", page.Pages)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}

	check := func(carID, start, end string) bool {
		url := fmt.Sprintf("%s/api/v1/availability?car_id=%s&start=%s&end=%s", ts.URL, carID, start, end)
		resp, raw := doJSON(t, http.MethodGet, url, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("availability failed: %d %s", resp.StatusCode, raw)
		}
		var body struct {
			Available bool `json:"available"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body.Available
	}

	if check("car-1", futureDate(12), futureDate(16)) {
		t.Fatalf("expected car-1 busy in overlapping window")
	}
	if !check("car-1", futureDate(20), futureDate(24)) {
		t.Fatalf("expected car-1 free in later window")
	}
	if !check("car-2", futureDate(12), futureDate(16)) {
		t.Fatalf("expected car-2 free")
	}
}

func TestCallerScoping(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	asCustomer := map[string]string{"x-user-id": "cust-1", "x-user-role": "customer"}

	// A customer can book for themselves.
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), asCustomer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("self booking failed: %d %s", resp.StatusCode, raw)
	}
	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Not for someone else.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-2", "cust-2", 10, 14), asCustomer)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 booking for another customer, got %d", resp.StatusCode)
	}

	// Confirmation is staff-only.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/"+booking.ID+"/confirm", nil, asCustomer)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for customer confirm, got %d", resp.StatusCode)
	}

	// So is the expiring view.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/expiring?hours=24", nil, asCustomer)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for customer expiring view, got %d", resp.StatusCode)
	}

	// Deletion is admin-only, even for managers.
	asManager := map[string]string{"x-user-id": "staff-1", "x-user-role": "manager"}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/bookings/"+booking.ID, nil, asManager)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for manager delete, got %d", resp.StatusCode)
	}
}

func TestCustomerAndCarBookings(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/v1/customers/cust-1/bookings", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("customer bookings failed: %d %s", resp.StatusCode, raw)
	}
	var body struct {
		Bookings []*models.Booking `json:"bookings"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Bookings) != 1 {
		t.Fatalf("expected 1 booking for cust-1, got %d", len(body.Bookings))
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/v1/cars/car-1/bookings", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("car bookings failed: %d %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Bookings) != 1 {
		t.Fatalf("expected 1 booking for car-1, got %d", len(body.Bookings))
	}
}

func TestUpcomingBookingsHTTP(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 3, 6), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-2", "cust-1", 30, 33), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/upcoming?days=7", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upcoming failed: %d %s", resp.StatusCode, raw)
	}
	var body struct {
		Bookings []*models.Booking `json:"bookings"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Bookings) != 1 {
		t.Fatalf("expected 1 upcoming booking in 7 days, got %d", len(body.Bookings))
	}
}

func TestBookingsReportHTTP(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings",
		createRequestBody("car-1", "cust-1", 10, 14), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/v1/reports/bookings.xlsx", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report failed: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if len(raw) == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func TestBookingsReportPrivilegedOnly(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	customer := map[string]string{"x-user-id": "cust-1", "x-user-role": "customer"}
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/v1/reports/bookings.xlsx", nil, customer)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer expected 403, got %d %s", resp.StatusCode, raw)
	}

	manager := map[string]string{"x-user-id": "mgr-1", "x-user-role": "manager"}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/reports/bookings.xlsx", nil, manager)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manager expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, newTestDB(t))

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
}
