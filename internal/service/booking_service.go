package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetdesk/internal/database"
	"fleetdesk/internal/domain"
	"fleetdesk/internal/events"
	"fleetdesk/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService orchestrates validation, availability checks, the lifecycle
// state machine and conversion into contracts. Caller identity is resolved by
// the boundary layer; this service only makes authorization decisions.
type BookingService struct {
	repo          domain.Repository
	cache         domain.Cache
	contracts     domain.ContractCreator
	eventBus      domain.EventPublisher
	holdTTL       time.Duration
	maxRentalDays int
	cacheTTL      time.Duration
	logger        *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	cache domain.Cache,
	contracts domain.ContractCreator,
	eventBus domain.EventPublisher,
	holdTTL time.Duration,
	maxRentalDays int,
	cacheTTL time.Duration,
	logger *zerolog.Logger,
) *BookingService {
	if holdTTL <= 0 {
		holdTTL = models.DefaultHoldHours * time.Hour
	}
	if maxRentalDays <= 0 {
		maxRentalDays = models.MaxRentalDays
	}
	return &BookingService{
		repo:          repo,
		cache:         cache,
		contracts:     contracts,
		eventBus:      eventBus,
		holdTTL:       holdTTL,
		maxRentalDays: maxRentalDays,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

// ValidateWindow checks the date invariants shared by create, update and
// checkAvailability: start strictly before end, window capped at the maximum
// rental length, start not in the past (calendar-date granularity).
func (s *BookingService) ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return validationErr("dates", "start and end dates are required")
	}
	if !start.Before(end) {
		return validationErr("dates", "start date must be before end date")
	}
	if end.Sub(start) > time.Duration(s.maxRentalDays)*24*time.Hour {
		return validationErr("dates", fmt.Sprintf("rental duration cannot exceed %d days", s.maxRentalDays))
	}
	today := dateOnly(time.Now())
	if dateOnly(start).Before(today) {
		return validationErr("start_date", "start date cannot be in the past")
	}
	return nil
}

func (s *BookingService) CreateBooking(ctx context.Context, input models.Booking, caller models.Caller) (*models.Booking, error) {
	// Authorization first: a non-privileged caller may only book for themselves.
	if !caller.Privileged() && !caller.Owns(input.CustomerID) {
		return nil, ErrUnauthorized
	}

	if input.CustomerID == "" {
		return nil, validationErr("customer_id", "customer id is required")
	}
	if input.CarID == "" {
		return nil, validationErr("car_id", "car id is required")
	}
	if err := s.ValidateWindow(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	exists, err := s.repo.CustomerExists(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("customer %s: %w", input.CustomerID, database.ErrNotFound)
	}
	exists, err = s.repo.CarExists(ctx, input.CarID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("car %s: %w", input.CarID, database.ErrNotFound)
	}

	// Fast-path availability probe. The repository re-checks inside the
	// insert transaction, which is what actually closes the race.
	available, err := s.repo.IsCarAvailable(ctx, input.CarID, input.StartDate, input.EndDate, "")
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, database.ErrNotAvailable
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		CustomerID:      input.CustomerID,
		CarID:           input.CarID,
		StartDate:       dateOnly(input.StartDate),
		EndDate:         dateOnly(input.EndDate),
		PickupLocation:  input.PickupLocation,
		DropoffLocation: input.DropoffLocation,
		Status:          models.StatusPending,
		ExpiresAt:       time.Now().Add(s.holdTTL),
		DailyRateCents:  input.DailyRateCents,
	}
	if booking.DailyRateCents == 0 {
		if car, err := s.repo.GetCar(ctx, input.CarID); err == nil {
			booking.DailyRateCents = car.DailyRateCents
		}
	}
	booking.TotalCents = booking.DailyRateCents * int64(booking.RentalDays())

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventBookingCreated, booking, caller, "")
	s.invalidateBookingCaches(ctx)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string, caller models.Caller) (*models.Booking, error) {
	if cached, ok := s.cacheGetBooking(ctx, id); ok {
		if !caller.Privileged() && !caller.Owns(cached.CustomerID) {
			return nil, ErrUnauthorized
		}
		return cached, nil
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Privileged() && !caller.Owns(booking.CustomerID) {
		return nil, ErrUnauthorized
	}

	s.cacheSetBooking(ctx, booking)
	return booking, nil
}

func (s *BookingService) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch, caller models.Caller) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Privileged() && !caller.Owns(booking.CustomerID) {
		return nil, ErrUnauthorized
	}
	if booking.IsTerminal() {
		return nil, &StateError{Current: booking.Status, Attempted: "update", Msg: "booking is in a terminal status and cannot change"}
	}

	fromVersion := booking.Version

	if patch.CarID != nil {
		exists, err := s.repo.CarExists(ctx, *patch.CarID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("car %s: %w", *patch.CarID, database.ErrNotFound)
		}
		booking.CarID = *patch.CarID
	}
	if patch.StartDate != nil {
		booking.StartDate = dateOnly(*patch.StartDate)
	}
	if patch.EndDate != nil {
		booking.EndDate = dateOnly(*patch.EndDate)
	}
	if patch.PickupLocation != nil {
		booking.PickupLocation = *patch.PickupLocation
	}
	if patch.DropoffLocation != nil {
		booking.DropoffLocation = *patch.DropoffLocation
	}
	if patch.DailyRateCents != nil {
		booking.DailyRateCents = *patch.DailyRateCents
	}

	recheck := patch.ChangesWindow()
	if recheck {
		if err := s.ValidateWindow(booking.StartDate, booking.EndDate); err != nil {
			return nil, err
		}
	}
	booking.TotalCents = booking.DailyRateCents * int64(booking.RentalDays())

	if err := s.repo.UpdateBookingWithLock(ctx, booking, fromVersion, recheck); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventBookingUpdated, booking, caller, "")
	s.invalidateBookingCaches(ctx)
	return booking, nil
}

// DeleteBooking permanently removes a booking. Administrative override only;
// every normal flow ends in a terminal status instead.
func (s *BookingService) DeleteBooking(ctx context.Context, id string, caller models.Caller) error {
	if !caller.Admin() {
		return ErrUnauthorized
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}

	s.publishEvent(ctx, events.EventBookingDeleted, booking, caller, "")
	s.invalidateBookingCaches(ctx)
	return nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, id string, caller models.Caller) (*models.Booking, error) {
	if !caller.Privileged() {
		return nil, ErrUnauthorized
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(booking.Status, models.StatusConfirmed); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, id, booking.Version, models.StatusConfirmed); err != nil {
		return nil, err
	}
	booking.Status = models.StatusConfirmed
	booking.Version++

	s.publishEvent(ctx, events.EventBookingConfirmed, booking, caller, "")
	s.invalidateBookingCaches(ctx)
	return booking, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id string, reason string, caller models.Caller) (*models.Booking, error) {
	if !caller.Privileged() {
		return nil, ErrUnauthorized
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(booking.Status, models.StatusCancelled); err != nil {
		return nil, err
	}

	if reason == "" {
		reason = models.DefaultCancellationReason
	}

	if err := s.repo.CancelBookingWithVersion(ctx, id, booking.Version, reason); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled
	booking.CancellationReason = reason
	booking.Version++

	s.publishEvent(ctx, events.EventBookingCancelled, booking, caller, reason)
	s.invalidateBookingCaches(ctx)
	return booking, nil
}

// ConvertToContract turns a confirmed booking into a binding rental contract
// through the external contract collaborator, then marks the booking
// CONVERTED with the contract id attached.
func (s *BookingService) ConvertToContract(ctx context.Context, id string, caller models.Caller) (*models.Booking, error) {
	if !caller.Privileged() {
		return nil, ErrUnauthorized
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(booking.Status, models.StatusConverted); err != nil {
		return nil, err
	}

	contractID, err := s.contracts.CreateContract(ctx, models.ContractRequest{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		CustomerID:       booking.CustomerID,
		CarID:            booking.CarID,
		StartDate:        booking.StartDate,
		EndDate:          booking.EndDate,
		DailyRateCents:   booking.DailyRateCents,
		TotalCents:       booking.TotalCents,
		PickupLocation:   booking.PickupLocation,
		DropoffLocation:  booking.DropoffLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("contract creation failed: %w", err)
	}

	if err := s.repo.ConvertBookingWithLock(ctx, booking, booking.Version, contractID); err != nil {
		return nil, err
	}
	booking.Status = models.StatusConverted
	booking.ContractID = contractID
	booking.Version++

	s.publishEvent(ctx, events.EventBookingConverted, booking, caller, "")
	s.invalidateBookingCaches(ctx)
	return booking, nil
}

// CheckAvailability is the public read-only facade over the overlap checker.
// It validates the same date invariants as create, so malformed ranges are
// rejected with the same errors.
func (s *BookingService) CheckAvailability(ctx context.Context, carID string, start, end time.Time) (bool, error) {
	if carID == "" {
		return false, validationErr("car_id", "car id is required")
	}
	if err := s.ValidateWindow(start, end); err != nil {
		return false, err
	}
	return s.repo.IsCarAvailable(ctx, carID, start, end, "")
}

func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter, page, limit int, caller models.Caller) (*models.BookingPage, error) {
	if !caller.Privileged() {
		filter.CustomerID = caller.UserID
	}

	key := listCacheKey(filter, page, limit)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var cached models.BookingPage
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	result, err := s.repo.ListBookings(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
			}
		}
	}
	return result, nil
}

func (s *BookingService) GetBookingsByCustomer(ctx context.Context, customerID string, caller models.Caller) ([]*models.Booking, error) {
	if !caller.Privileged() && !caller.Owns(customerID) {
		return nil, ErrUnauthorized
	}
	return s.repo.GetBookingsByCustomer(ctx, customerID)
}

func (s *BookingService) GetBookingsByCar(ctx context.Context, carID string, caller models.Caller) ([]*models.Booking, error) {
	if !caller.Privileged() {
		return nil, ErrUnauthorized
	}
	return s.repo.GetBookingsByCar(ctx, carID)
}

// GetUpcomingBookings returns non-terminal bookings starting within the next
// given days. Non-privileged callers only see their own.
func (s *BookingService) GetUpcomingBookings(ctx context.Context, days int, caller models.Caller) ([]*models.Booking, error) {
	if days <= 0 {
		days = 7
	}
	customerID := ""
	if !caller.Privileged() {
		customerID = caller.UserID
	}
	now := time.Now()
	return s.repo.GetUpcomingBookings(ctx, now, now.AddDate(0, 0, days), customerID)
}

// GetExpiringBookings returns PENDING bookings whose hold expires within the
// window. The window is computed at whole-day granularity: hours are
// floor-divided by 24 with a minimum of one day. Boundary behavior is part of
// the external contract; keep the quantization as is.
func (s *BookingService) GetExpiringBookings(ctx context.Context, hours int, caller models.Caller) ([]*models.Booking, error) {
	if !caller.Privileged() {
		return nil, ErrUnauthorized
	}

	days := hours / 24
	if days < 1 {
		days = 1
	}
	now := time.Now()
	return s.repo.GetExpiringPending(ctx, now, now.Add(time.Duration(days)*24*time.Hour))
}

// ExpireDueBookings applies PENDING -> EXPIRED to every booking past its hold
// deadline. Called by the periodic reaper.
func (s *BookingService) ExpireDueBookings(ctx context.Context) ([]*models.Booking, error) {
	expired, err := s.repo.ExpireDueBookings(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	system := models.Caller{UserID: "system", Role: models.RoleAdmin}
	for _, b := range expired {
		s.publishEvent(ctx, events.EventBookingExpired, b, system, "")
	}
	if len(expired) > 0 {
		s.invalidateBookingCaches(ctx)
	}
	return expired, nil
}

// publishEvent emits the lifecycle event and enqueues the audit record.
// Both are fire-and-forget: failures are logged, never propagated.
func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *models.Booking, caller models.Caller, reason string) {
	payload := events.BookingEventPayload{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		CustomerID:       booking.CustomerID,
		CarID:            booking.CarID,
		Status:           booking.Status,
		StartDate:        booking.StartDate,
		EndDate:          booking.EndDate,
		ContractID:       booking.ContractID,
		Reason:           reason,
		ChangedBy:        caller.UserID,
		ChangedByRole:    caller.Role,
	}

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
			s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("encode audit payload error")
		return
	}
	task := &models.AuditTask{
		EventType: eventType,
		BookingID: booking.ID,
		Payload:   string(raw),
		Status:    "pending",
	}
	if err := s.repo.CreateAuditTask(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("event_type", eventType).Msg("audit enqueue error")
	}
}

func (s *BookingService) cacheGetBooking(ctx context.Context, id string) (*models.Booking, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, bookingCacheKey(id))
	if err != nil || !ok {
		return nil, false
	}
	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		return nil, false
	}
	return &booking, true
}

func (s *BookingService) cacheSetBooking(ctx context.Context, booking *models.Booking) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(booking)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, bookingCacheKey(booking.ID), raw, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("cache set failed")
	}
}

func (s *BookingService) invalidateBookingCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePattern(ctx, "bookings:*"); err != nil {
		s.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func bookingCacheKey(id string) string {
	return "bookings:id:" + id
}

func listCacheKey(filter models.BookingFilter, page, limit int) string {
	return fmt.Sprintf("bookings:list:%s:%s:%s:p%d:l%d",
		filter.Status, filter.CarID, filter.CustomerID, page, limit)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ domain.BookingService = (*BookingService)(nil)
