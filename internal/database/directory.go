package database

import (
	"context"
	"fmt"
	"time"

	"fleetdesk/internal/models"
)

// The directory tables hold reference records for cars and customers. The
// engine only validates existence against them; ownership of both entities
// lives elsewhere.

func (db *DB) UpsertCar(ctx context.Context, car *models.Car) error {
	now := time.Now()
	query := `INSERT INTO cars (id, make, model, year, plate, daily_rate_cents, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                make = excluded.make, model = excluded.model, year = excluded.year,
                plate = excluded.plate, daily_rate_cents = excluded.daily_rate_cents,
                is_active = excluded.is_active, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		car.ID, car.Make, car.Model, car.Year, car.Plate, car.DailyRateCents, car.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert car: %w", err)
	}
	return nil
}

func (db *DB) UpsertCustomer(ctx context.Context, customer *models.Customer) error {
	now := time.Now()
	query := `INSERT INTO customers (id, full_name, email, phone, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                full_name = excluded.full_name, email = excluded.email, phone = excluded.phone,
                is_active = excluded.is_active, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		customer.ID, customer.FullName, customer.Email, customer.Phone, customer.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// SeedFleet loads config-declared cars and customers into the directory.
func (db *DB) SeedFleet(ctx context.Context, cars []models.Car, customers []models.Customer) error {
	for i := range cars {
		if err := db.UpsertCar(ctx, &cars[i]); err != nil {
			return err
		}
	}
	for i := range customers {
		if err := db.UpsertCustomer(ctx, &customers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) CarExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cars WHERE id = ? AND is_active = 1`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check car existence: %w", err)
	}
	return count > 0, nil
}

func (db *DB) CustomerExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id = ? AND is_active = 1`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check customer existence: %w", err)
	}
	return count > 0, nil
}

func (db *DB) GetCar(ctx context.Context, id string) (*models.Car, error) {
	car := &models.Car{}
	query := `SELECT id, make, model, year, plate, daily_rate_cents, is_active, created_at, updated_at
              FROM cars WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&car.ID, &car.Make, &car.Model, &car.Year, &car.Plate,
		&car.DailyRateCents, &car.IsActive, &car.CreatedAt, &car.UpdatedAt,
	)
	if err != nil {
		return nil, ErrNotFound
	}
	return car, nil
}

func (db *DB) GetActiveCars(ctx context.Context) ([]*models.Car, error) {
	query := `SELECT id, make, model, year, plate, daily_rate_cents, is_active, created_at, updated_at
              FROM cars WHERE is_active = 1 ORDER BY make, model`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		car := &models.Car{}
		err := rows.Scan(&car.ID, &car.Make, &car.Model, &car.Year, &car.Plate,
			&car.DailyRateCents, &car.IsActive, &car.CreatedAt, &car.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}
