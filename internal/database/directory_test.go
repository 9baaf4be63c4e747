package database

import (
	"context"
	"testing"

	"fleetdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFleet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.SeedFleet(ctx,
		[]models.Car{
			{ID: "car-1", Make: "Toyota", Model: "Corolla", Year: 2023, Plate: "AB123CD", DailyRateCents: 4500, IsActive: true},
			{ID: "car-2", Make: "Skoda", Model: "Octavia", Year: 2022, DailyRateCents: 5200, IsActive: false},
		},
		[]models.Customer{
			{ID: "cust-1", FullName: "Test Customer", IsActive: true},
		},
	)
	require.NoError(t, err)

	t.Run("ActiveCarExists", func(t *testing.T) {
		exists, err := db.CarExists(ctx, "car-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("InactiveCarHidden", func(t *testing.T) {
		exists, err := db.CarExists(ctx, "car-2")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("UnknownCar", func(t *testing.T) {
		exists, err := db.CarExists(ctx, "car-missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("CustomerExists", func(t *testing.T) {
		exists, err := db.CustomerExists(ctx, "cust-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("GetCar", func(t *testing.T) {
		car, err := db.GetCar(ctx, "car-1")
		require.NoError(t, err)
		assert.Equal(t, int64(4500), car.DailyRateCents)
		assert.Equal(t, "Corolla", car.Model)

		_, err = db.GetCar(ctx, "car-missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("GetActiveCars", func(t *testing.T) {
		cars, err := db.GetActiveCars(ctx)
		require.NoError(t, err)
		require.Len(t, cars, 1)
		assert.Equal(t, "car-1", cars[0].ID)
	})
}

func TestSeedFleetUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := models.Car{ID: "car-1", Make: "Toyota", Model: "Corolla", DailyRateCents: 4500, IsActive: true}
	require.NoError(t, db.SeedFleet(ctx, []models.Car{car}, nil))

	// Re-seeding with changed data overwrites in place.
	car.DailyRateCents = 4900
	car.IsActive = false
	require.NoError(t, db.SeedFleet(ctx, []models.Car{car}, nil))

	loaded, err := db.GetCar(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4900), loaded.DailyRateCents)

	exists, err := db.CarExists(ctx, "car-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
