package config

import (
	"errors"
	"fmt"
	"os"

	"fleetdesk/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig         `yaml:"app"`
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	API        APIConfig         `yaml:"api"`
	Logging    LoggingConfig     `yaml:"logging"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	Booking    BookingConfig     `yaml:"booking"`
	Worker     WorkerConfig      `yaml:"worker"`
	Backup     BackupConfig      `yaml:"backup"`
	Exports    ExportConfig      `yaml:"exports"`
	Google     GoogleConfig      `yaml:"google"`
	Cars       []models.Car      `yaml:"cars"`
	Customers  []models.Customer `yaml:"customers"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	TTL      int    `yaml:"ttl_seconds"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled        bool           `yaml:"enabled"`
	HeaderAPIKey   string         `yaml:"header_api_key"`
	HeaderUserID   string         `yaml:"header_user_id"`
	HeaderUserRole string         `yaml:"header_user_role"`
	APIKeys        []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type BookingConfig struct {
	HoldHours     int `yaml:"hold_hours"`
	MaxRentalDays int `yaml:"max_rental_days"`
}

type WorkerConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	BatchSize             int `yaml:"batch_size"`
	ReaperIntervalSeconds int `yaml:"reaper_interval_seconds"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
	ScheduleSpreadsheetID string `yaml:"schedule_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; explicit environment variables win either way.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.HoldHours < 0 {
		return errors.New("booking hold_hours cannot be negative")
	}

	if err := ValidateCars(c.Cars); err != nil {
		return err
	}
	return ValidateCustomers(c.Customers)
}

func ValidateCars(cars []models.Car) error {
	seen := make(map[string]bool)
	for _, car := range cars {
		if car.ID == "" {
			return fmt.Errorf("car '%s %s' has empty ID", car.Make, car.Model)
		}
		if seen[car.ID] {
			return fmt.Errorf("duplicate car ID found: %s", car.ID)
		}
		seen[car.ID] = true
	}
	return nil
}

func ValidateCustomers(customers []models.Customer) error {
	seen := make(map[string]bool)
	for _, customer := range customers {
		if customer.ID == "" {
			return fmt.Errorf("customer '%s' has empty ID", customer.FullName)
		}
		if seen[customer.ID] {
			return fmt.Errorf("duplicate customer ID found: %s", customer.ID)
		}
		seen[customer.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if c.API.Enabled && !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderUserID == "" {
		c.API.Auth.HeaderUserID = "x-user-id"
	}
	if c.API.Auth.HeaderUserRole == "" {
		c.API.Auth.HeaderUserRole = "x-user-role"
	}

	if c.Booking.HoldHours == 0 {
		c.Booking.HoldHours = models.DefaultHoldHours
	}
	if c.Booking.MaxRentalDays == 0 {
		c.Booking.MaxRentalDays = models.MaxRentalDays
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = models.DefaultCacheTTLSeconds
	}

	if c.Worker.PollIntervalSeconds == 0 {
		c.Worker.PollIntervalSeconds = 2
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.ReaperIntervalSeconds == 0 {
		c.Worker.ReaperIntervalSeconds = 60
	}
}
