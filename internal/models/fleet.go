package models

import "time"

// Car is a reference record for a fleet vehicle. The engine only needs enough
// of it to validate existence and seed demo fleets from config.
type Car struct {
	ID             string    `yaml:"id" json:"id"`
	Make           string    `yaml:"make" json:"make"`
	Model          string    `yaml:"model" json:"model"`
	Year           int       `yaml:"year" json:"year"`
	Plate          string    `yaml:"plate" json:"plate"`
	DailyRateCents int64     `yaml:"daily_rate_cents" json:"daily_rate_cents"`
	IsActive       bool      `yaml:"is_active" json:"is_active"`
	CreatedAt      time.Time `yaml:"-" json:"created_at"`
	UpdatedAt      time.Time `yaml:"-" json:"updated_at"`
}

// Customer is a reference record for an account that can own bookings.
type Customer struct {
	ID        string    `yaml:"id" json:"id"`
	FullName  string    `yaml:"full_name" json:"full_name"`
	Email     string    `yaml:"email" json:"email"`
	Phone     string    `yaml:"phone" json:"phone"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}
