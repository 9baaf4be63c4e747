package database

import (
	"context"
	"fmt"

	"fleetdesk/internal/models"
)

// GetActiveContractsByCar lists active contract windows for a car. The
// overlap scan already joins against this table; the listing exists for
// back-office visibility.
func (db *DB) GetActiveContractsByCar(ctx context.Context, carID string) ([]*models.ContractRecord, error) {
	query := `SELECT id, booking_id, car_id, date(start_date), date(end_date), status, created_at
              FROM contracts WHERE car_id = ? AND status = ? ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, query, carID, models.ContractStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*models.ContractRecord
	for rows.Next() {
		c := &models.ContractRecord{}
		var startStr, endStr string
		err := rows.Scan(&c.ID, &c.BookingID, &c.CarID, &startStr, &endStr, &c.Status, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		if c.StartDate, err = parseDate(startStr); err != nil {
			return nil, err
		}
		if c.EndDate, err = parseDate(endStr); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// CloseContract releases a contract window so the car becomes bookable again.
func (db *DB) CloseContract(ctx context.Context, contractID string) error {
	result, err := db.ExecContext(ctx, `UPDATE contracts SET status = ? WHERE id = ?`,
		models.ContractStatusClosed, contractID)
	if err != nil {
		return fmt.Errorf("failed to close contract: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
