package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetdesk/internal/config"
	"fleetdesk/internal/models"
)

func authedConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "back-office-key", Name: "back-office"},
				{Key: "readonly-key", Name: "reporting", Permissions: []string{"read:bookings", "read:reports"}},
			},
		},
	}
}

func wrapProbe(auth *HTTPAuth) (http.Handler, *models.Caller) {
	seen := &models.Caller{}
	h := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, seen
}

func TestAuthMissingKey(t *testing.T) {
	h, _ := wrapProbe(NewHTTPAuth(authedConfig()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthInvalidKey(t *testing.T) {
	h, _ := wrapProbe(NewHTTPAuth(authedConfig()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthPermissions(t *testing.T) {
	h, _ := wrapProbe(NewHTTPAuth(authedConfig()))

	// Read is within the key's grants.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "readonly-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for granted read, got %d", rec.Code)
	}

	// Write is not.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "readonly-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for denied write, got %d", rec.Code)
	}

	// An empty permission list allows everything.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "back-office-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for allow-all key, got %d", rec.Code)
	}
}

func TestAuthRateLimit(t *testing.T) {
	cfg := authedConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	h, _ := wrapProbe(NewHTTPAuth(cfg))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set("x-api-key", "back-office-key")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected burst of 2 to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}
}

func TestCallerResolution(t *testing.T) {
	t.Run("AuthEnabledDefaultsToCustomer", func(t *testing.T) {
		h, seen := wrapProbe(NewHTTPAuth(authedConfig()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set("x-api-key", "back-office-key")
		req.Header.Set("x-user-id", "cust-9")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen.UserID != "cust-9" || seen.Role != models.RoleCustomer {
			t.Fatalf("unexpected caller %+v", seen)
		}
	})

	t.Run("RoleHeaderWins", func(t *testing.T) {
		h, seen := wrapProbe(NewHTTPAuth(authedConfig()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set("x-api-key", "back-office-key")
		req.Header.Set("x-user-id", "staff-1")
		req.Header.Set("x-user-role", "Manager")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen.Role != models.RoleManager {
			t.Fatalf("expected manager role, got %q", seen.Role)
		}
	})

	t.Run("AuthDisabledDefaultsToAdmin", func(t *testing.T) {
		h, seen := wrapProbe(NewHTTPAuth(config.APIConfig{}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen.Role != models.RoleAdmin {
			t.Fatalf("expected admin role, got %q", seen.Role)
		}
	})
}

func TestRequiredPermissionHTTP(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/availability", "read:availability"},
		{http.MethodGet, "/api/v1/reports/bookings.xlsx", "read:reports"},
		{http.MethodGet, "/api/v1/bookings/abc", "read:bookings"},
		{http.MethodPost, "/api/v1/bookings", "write:bookings"},
		{http.MethodGet, "/api/v1/customers/c-1/bookings", "read:bookings"},
		{http.MethodDelete, "/api/v1/bookings/abc", "write:bookings"},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, nil)
		if got := requiredPermissionHTTP(r); got != tc.want {
			t.Fatalf("%s %s: expected %q, got %q", tc.method, tc.path, tc.want, got)
		}
	}
}
