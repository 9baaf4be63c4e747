package models

import "time"

// ContractRecord is the local projection of a rental contract created by the
// external contract collaborator. Only the window and status matter here: the
// availability scan treats active records as blocking reservations.
type ContractRecord struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	CarID     string    `json:"car_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ContractRequest is the payload handed to the contract collaborator when a
// confirmed booking is converted.
type ContractRequest struct {
	BookingID        string    `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	CustomerID       string    `json:"customer_id"`
	CarID            string    `json:"car_id"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	DailyRateCents   int64     `json:"daily_rate_cents"`
	TotalCents       int64     `json:"total_cents"`
	PickupLocation   string    `json:"pickup_location"`
	DropoffLocation  string    `json:"dropoff_location"`
}
