package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleetdesk/internal/models"
)

const bookingColumns = `id, booking_reference, customer_id, car_id, date(start_date), date(end_date),
	                 pickup_location, dropoff_location, status, expires_at, cancellation_reason,
					 contract_id, daily_rate_cents, total_cents, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var startStr, endStr string
	err := row.Scan(
		&b.ID, &b.BookingReference, &b.CustomerID, &b.CarID, &startStr, &endStr,
		&b.PickupLocation, &b.DropoffLocation, &b.Status, &b.ExpiresAt, &b.CancellationReason,
		&b.ContractID, &b.DailyRateCents, &b.TotalCents, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if b.StartDate, err = parseDate(startStr); err != nil {
		return nil, err
	}
	if b.EndDate, err = parseDate(endStr); err != nil {
		return nil, err
	}
	return b, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// countOverlapping counts non-terminal reservations for the car whose windows
// conflict with [start, end] under the closed-interval policy: two windows
// conflict when start1 <= end2 AND start2 <= end1, so a booking ending on a
// date and another starting on that same date conflict (no same-day
// turnaround). Both held bookings and active contract windows count.
func countOverlapping(ctx context.Context, q queryRower, carID string, start, end time.Time, excludeBookingID string) (int, error) {
	query := `SELECT
	            (SELECT COUNT(*) FROM bookings
	              WHERE car_id = ? AND id != ? AND status IN (?, ?)
	                AND date(start_date) <= date(?) AND date(end_date) >= date(?))
	            +
	            (SELECT COUNT(*) FROM contracts
	              WHERE car_id = ? AND status = ?
	                AND date(start_date) <= date(?) AND date(end_date) >= date(?))`
	var count int
	err := q.QueryRowContext(ctx, query,
		carID, excludeBookingID, models.StatusPending, models.StatusConfirmed,
		formatDate(end), formatDate(start),
		carID, models.ContractStatusActive,
		formatDate(end), formatDate(start),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping reservations: %w", err)
	}
	return count, nil
}

// IsCarAvailable reports whether the car has no conflicting reservation for
// the window. Pure read; writers must re-check inside their transaction.
func (db *DB) IsCarAvailable(ctx context.Context, carID string, start, end time.Time, excludeBookingID string) (bool, error) {
	count, err := countOverlapping(ctx, db, carID, start, end, excludeBookingID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// nextReference mints the booking reference for the given year inside the
// transaction, so concurrent creates never collide.
func nextReference(ctx context.Context, tx *sql.Tx, year int) (string, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO booking_sequences (year, seq) VALUES (?, 1)
         ON CONFLICT(year) DO UPDATE SET seq = seq + 1`, year)
	if err != nil {
		return "", fmt.Errorf("failed to advance reference sequence: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM booking_sequences WHERE year = ?`, year).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to read reference sequence: %w", err)
	}
	return models.FormatReference(year, seq), nil
}

// CreateBookingWithLock inserts a booking after re-checking availability
// inside a single transaction, closing the check-then-act window between the
// caller's availability probe and the write. The booking reference is minted
// here and written back onto the booking along with timestamps and version.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	count, err := countOverlapping(ctx, tx, booking.CarID, booking.StartDate, booking.EndDate, "")
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrNotAvailable
	}

	reference, err := nextReference(ctx, tx, booking.StartDate.Year())
	if err != nil {
		return err
	}

	now := time.Now()
	query := `INSERT INTO bookings (
				id, booking_reference, customer_id, car_id, start_date, end_date,
				pickup_location, dropoff_location, status, expires_at, cancellation_reason,
				contract_id, daily_rate_cents, total_cents, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?, ?, ?, 1)`
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		reference,
		booking.CustomerID,
		booking.CarID,
		formatDate(booking.StartDate),
		formatDate(booking.EndDate),
		booking.PickupLocation,
		booking.DropoffLocation,
		booking.Status,
		booking.ExpiresAt,
		booking.DailyRateCents,
		booking.TotalCents,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.BookingReference = reference
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingWithLock persists patched fields. When the car or the date
// window changed, availability is re-checked inside the same transaction with
// the booking's own row excluded. The version check rejects concurrent edits.
func (db *DB) UpdateBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64, recheckAvailability bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if recheckAvailability {
		count, err := countOverlapping(ctx, tx, booking.CarID, booking.StartDate, booking.EndDate, booking.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrNotAvailable
		}
	}

	now := time.Now()
	query := `UPDATE bookings SET car_id = ?, start_date = ?, end_date = ?,
				pickup_location = ?, dropoff_location = ?, daily_rate_cents = ?, total_cents = ?,
				updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query,
		booking.CarID,
		formatDate(booking.StartDate),
		formatDate(booking.EndDate),
		booking.PickupLocation,
		booking.DropoffLocation,
		booking.DailyRateCents,
		booking.TotalCents,
		now,
		booking.ID,
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}

	booking.UpdatedAt = now
	booking.Version = fromVersion + 1
	return nil
}

// DeleteBooking permanently removes the record. The sole true deletion path;
// reserved for administrative overrides.
func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) CancelBookingWithVersion(ctx context.Context, id string, fromVersion int64, reason string) error {
	query := `UPDATE bookings SET status = ?, cancellation_reason = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, models.StatusCancelled, reason, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ConvertBookingWithLock marks a confirmed booking CONVERTED and records the
// active contract window in the same transaction, so the overlap scan keeps
// seeing the car as taken without a gap.
func (db *DB) ConvertBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64, contractID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE bookings SET status = ?, contract_id = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := tx.ExecContext(ctx, query,
		models.StatusConverted, contractID, time.Now(), booking.ID, fromVersion, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to convert booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contracts (id, booking_id, car_id, start_date, end_date, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contractID, booking.ID, booking.CarID,
		formatDate(booking.StartDate), formatDate(booking.EndDate),
		models.ContractStatusActive, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record contract window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversion: %w", err)
	}
	return nil
}

// ListBookings returns one page of bookings matching the filter, newest first.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter, page, limit int) (*models.BookingPage, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.CarID != "" {
		where += ` AND car_id = ?`
		args = append(args, filter.CarID)
	}
	if filter.CustomerID != "" {
		where += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = models.DefaultPageLimit
	}
	if limit > models.MaxPageLimit {
		limit = models.MaxPageLimit
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	bookings, err := db.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	pages := (total + limit - 1) / limit
	return &models.BookingPage{Data: bookings, Total: total, Page: page, Pages: pages}, nil
}

func (db *DB) GetBookingsByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = ? ORDER BY start_date DESC`
	return db.queryBookings(ctx, query, customerID)
}

func (db *DB) GetBookingsByCar(ctx context.Context, carID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE car_id = ? ORDER BY start_date DESC`
	return db.queryBookings(ctx, query, carID)
}

// GetUpcomingBookings returns non-terminal bookings starting inside
// [from, to]. customerID narrows the scan to one customer when non-empty.
func (db *DB) GetUpcomingBookings(ctx context.Context, from, to time.Time, customerID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status IN (?, ?) AND date(start_date) >= date(?) AND date(start_date) <= date(?)`
	args := []interface{}{models.StatusPending, models.StatusConfirmed, formatDate(from), formatDate(to)}
	if customerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, customerID)
	}
	query += ` ORDER BY start_date ASC`
	return db.queryBookings(ctx, query, args...)
}

// GetExpiringPending returns PENDING bookings whose hold expires inside
// [from, to]. Pure read; the reaper applies the actual transition.
func (db *DB) GetExpiringPending(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND expires_at >= ? AND expires_at <= ?
              ORDER BY expires_at ASC`
	return db.queryBookings(ctx, query, models.StatusPending, from, to)
}

// ExpireDueBookings transitions every PENDING booking past its hold deadline
// to EXPIRED and returns the affected rows.
func (db *DB) ExpireDueBookings(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? AND expires_at < ?`
	rows, err := tx.QueryContext(ctx, query, models.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due bookings: %w", err)
	}
	expired, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE status = ? AND expires_at < ?`,
		models.StatusExpired, now, models.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire bookings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expiry sweep: %w", err)
	}

	for _, b := range expired {
		b.Status = models.StatusExpired
	}
	return expired, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
