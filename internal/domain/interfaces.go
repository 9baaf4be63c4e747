package domain

import (
	"context"
	"time"

	"fleetdesk/internal/models"
)

// Repository is the persistence surface the booking service depends on.
type Repository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64, recheckAvailability bool) error
	DeleteBooking(ctx context.Context, id string) error
	UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error
	CancelBookingWithVersion(ctx context.Context, id string, fromVersion int64, reason string) error
	ConvertBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64, contractID string) error
	ListBookings(ctx context.Context, filter models.BookingFilter, page, limit int) (*models.BookingPage, error)
	GetBookingsByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error)
	GetBookingsByCar(ctx context.Context, carID string) ([]*models.Booking, error)
	GetUpcomingBookings(ctx context.Context, from, to time.Time, customerID string) ([]*models.Booking, error)
	GetExpiringPending(ctx context.Context, from, to time.Time) ([]*models.Booking, error)
	ExpireDueBookings(ctx context.Context, now time.Time) ([]*models.Booking, error)
	IsCarAvailable(ctx context.Context, carID string, start, end time.Time, excludeBookingID string) (bool, error)
	CarExists(ctx context.Context, id string) (bool, error)
	CustomerExists(ctx context.Context, id string) (bool, error)
	GetCar(ctx context.Context, id string) (*models.Car, error)
	CreateAuditTask(ctx context.Context, task *models.AuditTask) error
}

// Cache is the explicit cache port injected into the service. Reads and
// writes call it directly; invalidation rules stay visible at the call sites.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// ContractCreator is the external collaborator that turns a confirmed booking
// into a binding rental contract and returns its id.
type ContractCreator interface {
	CreateContract(ctx context.Context, req models.ContractRequest) (string, error)
}

// EventPublisher fans booking lifecycle events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingService is the engine's operation surface, transport-independent.
type BookingService interface {
	CreateBooking(ctx context.Context, input models.Booking, caller models.Caller) (*models.Booking, error)
	GetBooking(ctx context.Context, id string, caller models.Caller) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, patch models.BookingPatch, caller models.Caller) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string, caller models.Caller) error
	ConfirmBooking(ctx context.Context, id string, caller models.Caller) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string, reason string, caller models.Caller) (*models.Booking, error)
	ConvertToContract(ctx context.Context, id string, caller models.Caller) (*models.Booking, error)
	CheckAvailability(ctx context.Context, carID string, start, end time.Time) (bool, error)
	ListBookings(ctx context.Context, filter models.BookingFilter, page, limit int, caller models.Caller) (*models.BookingPage, error)
	GetBookingsByCustomer(ctx context.Context, customerID string, caller models.Caller) ([]*models.Booking, error)
	GetBookingsByCar(ctx context.Context, carID string, caller models.Caller) ([]*models.Booking, error)
	GetUpcomingBookings(ctx context.Context, days int, caller models.Caller) ([]*models.Booking, error)
	GetExpiringBookings(ctx context.Context, hours int, caller models.Caller) ([]*models.Booking, error)
	ExpireDueBookings(ctx context.Context) ([]*models.Booking, error)
}
