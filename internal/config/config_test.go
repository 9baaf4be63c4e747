package config

import (
	"os"
	"path/filepath"
	"testing"

	"fleetdesk/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "fleet.db"
api:
  enabled: true
cars:
  - id: "car-1"
    make: "Toyota"
    model: "Corolla"
    daily_rate_cents: 4500
    is_active: true
customers:
  - id: "cust-1"
    full_name: "Test Customer"
    is_active: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "fleet.db" {
		t.Errorf("expected database path fleet.db, got %s", cfg.Database.Path)
	}
	if len(cfg.Cars) != 1 || cfg.Cars[0].ID != "car-1" {
		t.Errorf("expected 1 car with ID car-1")
	}
	if cfg.Cars[0].DailyRateCents != 4500 {
		t.Errorf("expected daily rate 4500, got %d", cfg.Cars[0].DailyRateCents)
	}
	if len(cfg.Customers) != 1 || cfg.Customers[0].FullName != "Test Customer" {
		t.Errorf("expected 1 customer named Test Customer")
	}
	if !cfg.API.Auth.Enabled {
		t.Errorf("expected auth to default on when the API is enabled")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("FLEET_DB_PATH", "env.db")

	yamlContent := `
database:
  path: "${FLEET_DB_PATH}"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "env.db" {
		t.Errorf("expected env.db, got %s", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "fleet.db"},
				Cars:     []models.Car{{ID: "car-1", Make: "Toyota", Model: "Corolla"}},
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "negative hold hours",
			cfg: Config{
				Database: DatabaseConfig{Path: "fleet.db"},
				Booking:  BookingConfig{HoldHours: -1},
			},
			wantErr: true,
		},
		{
			name: "duplicate car id",
			cfg: Config{
				Database: DatabaseConfig{Path: "fleet.db"},
				Cars: []models.Car{
					{ID: "car-1", Make: "Toyota", Model: "Corolla"},
					{ID: "car-1", Make: "Skoda", Model: "Octavia"},
				},
			},
			wantErr: true,
		},
		{
			name: "car without id",
			cfg: Config{
				Database: DatabaseConfig{Path: "fleet.db"},
				Cars:     []models.Car{{Make: "Toyota", Model: "Corolla"}},
			},
			wantErr: true,
		},
		{
			name: "duplicate customer id",
			cfg: Config{
				Database: DatabaseConfig{Path: "fleet.db"},
				Customers: []models.Customer{
					{ID: "cust-1", FullName: "One"},
					{ID: "cust-1", FullName: "Two"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Booking.HoldHours != models.DefaultHoldHours {
		t.Errorf("expected default hold hours %d, got %d", models.DefaultHoldHours, cfg.Booking.HoldHours)
	}
	if cfg.Booking.MaxRentalDays != models.MaxRentalDays {
		t.Errorf("expected default max rental days %d, got %d", models.MaxRentalDays, cfg.Booking.MaxRentalDays)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Worker.PollIntervalSeconds != 2 {
		t.Errorf("expected default poll interval 2s, got %d", cfg.Worker.PollIntervalSeconds)
	}
	if cfg.Worker.ReaperIntervalSeconds != 60 {
		t.Errorf("expected default reaper interval 60s, got %d", cfg.Worker.ReaperIntervalSeconds)
	}
	if cfg.Redis.TTL != models.DefaultCacheTTLSeconds {
		t.Errorf("expected default cache TTL %d, got %d", models.DefaultCacheTTLSeconds, cfg.Redis.TTL)
	}
}

func TestPrometheusPortDefault(t *testing.T) {
	cfg := &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()

	if cfg.Monitoring.PrometheusPort != 9090 {
		t.Errorf("expected default prometheus port 9090, got %d", cfg.Monitoring.PrometheusPort)
	}
}
