package models

import (
	"fmt"
	"time"
)

// Booking is the core reservation entity. Dates are calendar dates; the time
// component is normalized to midnight UTC when a booking is stored.
type Booking struct {
	ID                 string    `json:"id"`
	BookingReference   string    `json:"booking_reference"`
	CustomerID         string    `json:"customer_id"`
	CarID              string    `json:"car_id"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	PickupLocation     string    `json:"pickup_location"`
	DropoffLocation    string    `json:"dropoff_location"`
	Status             string    `json:"status"`
	ExpiresAt          time.Time `json:"expires_at"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	ContractID         string    `json:"contract_id,omitempty"`
	DailyRateCents     int64     `json:"daily_rate_cents"`
	TotalCents         int64     `json:"total_cents"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            int64     `json:"version"`
}

// BookingPatch carries optional field updates. Nil means "leave unchanged".
type BookingPatch struct {
	CarID           *string    `json:"car_id,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	PickupLocation  *string    `json:"pickup_location,omitempty"`
	DropoffLocation *string    `json:"dropoff_location,omitempty"`
	DailyRateCents  *int64     `json:"daily_rate_cents,omitempty"`
}

// ChangesWindow reports whether the patch touches the car or the date window,
// which forces an availability re-check.
func (p BookingPatch) ChangesWindow() bool {
	return p.CarID != nil || p.StartDate != nil || p.EndDate != nil
}

// BookingFilter narrows List queries.
type BookingFilter struct {
	Status     string
	CarID      string
	CustomerID string
}

// BookingPage is a paginated listing result.
type BookingPage struct {
	Data  []*Booking `json:"data"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Pages int        `json:"pages"`
}

// RentalDays returns the number of charged days for the booking window.
// A same-week rental 2026-03-01..2026-03-05 is four days.
func (b *Booking) RentalDays() int {
	return int(b.EndDate.Sub(b.StartDate).Hours() / 24)
}

// IsTerminal reports whether the booking reached a final status.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case StatusCancelled, StatusExpired, StatusConverted:
		return true
	}
	return false
}

// FormatReference renders the external booking reference for a given year and
// sequence number, e.g. BKG-2026-00001. The format is a stable contract.
func FormatReference(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", ReferencePrefix, year, seq)
}
