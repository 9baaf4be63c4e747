package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fleetdesk/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBookingSameWindow(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	start := day(10)
	end := day(14)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			booking := &models.Booking{
				ID:         uuid.NewString(),
				CustomerID: "cust-1",
				CarID:      "car-1",
				StartDate:  start,
				EndDate:    end,
				Status:     models.StatusPending,
				ExpiresAt:  time.Now().Add(48 * time.Hour),
			}
			results <- db.CreateBookingWithLock(ctx, booking)
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		require.ErrorIs(t, err, ErrNotAvailable)
		conflictCount++
	}

	assert.Equal(t, 1, successCount, "exactly one booking should win the window")
	assert.Equal(t, numGoroutines-1, conflictCount)

	page, err := db.ListBookings(ctx, models.BookingFilter{CarID: "car-1"}, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestConcurrentReferenceMinting(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "references.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	// Disjoint windows on distinct cars, so every create succeeds and all
	// of them race on the sequence row.
	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	refs := make(chan string, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			booking := newBooking("cust-1", "car-"+uuid.NewString(), day(10), day(14))
			if err := db.CreateBookingWithLock(ctx, booking); err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			refs <- booking.BookingReference
		}()
	}

	wg.Wait()
	close(refs)

	seen := make(map[string]bool)
	for ref := range refs {
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
	assert.Len(t, seen, numGoroutines)
}
